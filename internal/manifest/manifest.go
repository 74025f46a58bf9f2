// Package manifest renders infrastructure-as-code manifests for approved
// resource requests. Rendering is a pure function of (resource type, name,
// environment, parameters) over templates embedded in the binary.
package manifest

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/hashicorp/go-version"

	"github.com/platformhub/platformhub/internal/catalog"
	"github.com/platformhub/platformhub/internal/db/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// ErrInvalidParameter is returned when a parameter value cannot be rendered
// into the target syntax, e.g. a non-numeric storage size.
var ErrInvalidParameter = errors.New("invalid parameter")

// Flavor is the syntax of a rendered manifest.
type Flavor string

const (
	FlavorYAML      Flavor = "yaml"
	FlavorTerraform Flavor = "terraform"
)

type templateSpec struct {
	file   string
	flavor Flavor
}

var templatesByType = map[models.ResourceType]templateSpec{
	models.ResourceK8sNamespace: {"k8s_namespace.yaml.tmpl", FlavorYAML},
	models.ResourceS3Bucket:     {"s3_bucket.tf.tmpl", FlavorTerraform},
	models.ResourceRDSDatabase:  {"rds_database.tf.tmpl", FlavorTerraform},
}

var templates = template.Must(
	template.New("manifests").
		Funcs(template.FuncMap{
			"yaml":     quoteYAML,
			"hcl":      quoteHCL,
			"bool":     parseBool,
			"int":      parseInt,
			"mul":      func(a, b int) int { return a * b },
			"pgFamily": postgresFamily,
			"dbName":   dbName,
		}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// KV is an undeclared parameter carried through to the manifest as a tag or
// annotation.
type KV struct {
	Key   string
	Value string
}

type templateData struct {
	Name        string
	Environment string
	Identifier  string
	Params      map[string]string
	Extra       []KV
}

// FlavorOf returns the output syntax for t. The second result is false for
// types without a template.
func FlavorOf(t models.ResourceType) (Flavor, bool) {
	tpl, ok := templatesByType[t]
	return tpl.flavor, ok
}

// Placeholder is the text produced for a resource type without a template.
func Placeholder(t models.ResourceType) string {
	return fmt.Sprintf("# No template available for resource type: %s\n", t)
}

// Generate renders the manifest for one request. Missing or empty parameters
// take their catalog defaults; parameters the catalog does not declare are
// emitted as tags (Terraform) or annotations (Kubernetes) in key order. An
// unknown resource type yields Placeholder rather than an error.
func Generate(t models.ResourceType, name string, env models.Environment, params map[string]string) (string, error) {
	tpl, ok := templatesByType[t]
	if !ok {
		return Placeholder(t), nil
	}

	merged := catalog.Defaults(t)
	var extra []KV
	for k, v := range params {
		if !catalog.Declared(t, k) {
			extra = append(extra, KV{Key: k, Value: v})
		} else if v == "" {
			continue
		}
		merged[k] = v
	}
	if item, err := catalog.Get(t); err == nil {
		for _, p := range item.Parameters {
			if _, ok := merged[p.Name]; !ok {
				merged[p.Name] = ""
			}
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Key < extra[j].Key })

	if err := CheckParameters(t, merged); err != nil {
		return "", err
	}

	data := templateData{
		Name:        name,
		Environment: string(env),
		Identifier:  name + "-" + string(env),
		Params:      merged,
		Extra:       extra,
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tpl.file, data); err != nil {
		return "", fmt.Errorf("failed to render %s manifest: %w", t, err)
	}
	return buf.String(), nil
}

// CheckParameters verifies that every typed catalog parameter present in
// params parses as its declared type. Empty values are left to the defaults.
func CheckParameters(t models.ResourceType, params map[string]string) error {
	item, err := catalog.Get(t)
	if err != nil {
		return nil
	}
	for _, p := range item.Parameters {
		v, ok := params[p.Name]
		if !ok || v == "" {
			continue
		}
		switch p.Type {
		case catalog.TypeBoolean:
			_, err = parseBool(v)
		case catalog.TypeNumber:
			_, err = parseInt(v)
		}
		if err == nil && t == models.ResourceRDSDatabase && p.Name == "engine_version" {
			_, err = postgresFamily(v)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	return nil
}

// Render is Generate for a stored request.
func Render(req *models.ResourceRequest) (string, error) {
	return Generate(req.ResourceType, req.Name, req.Environment, req.Parameters)
}

// Filename returns the download name for a request's manifest.
func Filename(req *models.ResourceRequest) string {
	ext := "txt"
	if f, ok := FlavorOf(req.ResourceType); ok {
		switch f {
		case FlavorYAML:
			ext = "yaml"
		case FlavorTerraform:
			ext = "tf"
		}
	}
	return req.Identifier() + "." + ext
}

// ContentType returns the MIME type for a request's manifest.
func ContentType(t models.ResourceType) string {
	if f, ok := FlavorOf(t); ok && f == FlavorYAML {
		return "application/yaml; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// escape produces the body of a double-quoted string accepted by both YAML
// and HCL.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func quoteYAML(s string) string {
	return `"` + escape(s) + `"`
}

// quoteHCL also neutralises template sequences, which HCL would otherwise
// interpolate.
func quoteHCL(s string) string {
	e := escape(s)
	e = strings.ReplaceAll(e, "${", "$${")
	e = strings.ReplaceAll(e, "%{", "%%{")
	return `"` + e + `"`
}

// ParseBool accepts the usual strconv forms plus yes/no and on/off.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

func parseBool(s string) (bool, error) {
	v, err := ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidParameter, s)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q is not a positive number", ErrInvalidParameter, s)
	}
	return v, nil
}

// postgresFamily maps an engine version ("16", "15.4") to its RDS parameter
// group family ("postgres16"). Versions before 10 keep their minor
// component ("9.6" → "postgres9.6").
func postgresFamily(engineVersion string) (string, error) {
	v, err := version.NewVersion(strings.TrimSpace(engineVersion))
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a PostgreSQL version", ErrInvalidParameter, engineVersion)
	}
	seg := v.Segments()
	if seg[0] < 10 {
		return fmt.Sprintf("postgres%d.%d", seg[0], seg[1]), nil
	}
	return fmt.Sprintf("postgres%d", seg[0]), nil
}

// dbName turns a request name into a valid initial database name.
func dbName(name string) string {
	n := strings.ReplaceAll(name, "-", "_")
	if len(n) > 63 {
		n = n[:63]
	}
	return n
}
