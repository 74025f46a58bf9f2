package manifest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/validation"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"

	"github.com/platformhub/platformhub/internal/db/models"
)

// ErrInvalidManifest is returned when rendered output does not parse in its
// target syntax.
var ErrInvalidManifest = errors.New("invalid manifest")

// Validate checks that a rendered manifest for t is syntactically valid.
// Placeholders for unknown types are accepted as-is.
func Validate(t models.ResourceType, text string) error {
	flavor, ok := FlavorOf(t)
	if !ok {
		return nil
	}
	switch flavor {
	case FlavorYAML:
		return validateKubernetes(text)
	case FlavorTerraform:
		return validateTerraform(string(t)+".tf", text)
	}
	return nil
}

// CheckIdentifier reports whether the {name}-{env} identifier of a request
// can name the object its manifest creates. Kubernetes namespaces are
// DNS-1123 labels, so the identifier is capped at 63 characters.
func CheckIdentifier(t models.ResourceType, name string, env models.Environment) error {
	if flavor, ok := FlavorOf(t); !ok || flavor != FlavorYAML {
		return nil
	}
	id := name + "-" + string(env)
	if len(id) > validation.DNS1123LabelMaxLength {
		return fmt.Errorf("name must be at most %d characters for %s in %s",
			validation.DNS1123LabelMaxLength-len(env)-1, t, env)
	}
	if errs := validation.IsDNS1123Label(id); len(errs) > 0 {
		return fmt.Errorf("name %q is not a valid namespace: %s", id, strings.Join(errs, "; "))
	}
	return nil
}

// validateKubernetes decodes every YAML document into an unstructured object
// and requires apiVersion, kind and a DNS-1123 metadata.name on each.
// Namespace names are held to the stricter label rules (63 characters).
func validateKubernetes(text string) error {
	dec := utilyaml.NewYAMLOrJSONDecoder(strings.NewReader(text), 4096)
	count := 0
	for {
		var obj map[string]interface{}
		err := dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		if len(obj) == 0 {
			continue
		}
		count++

		u := &unstructured.Unstructured{Object: obj}
		if u.GetAPIVersion() == "" || u.GetKind() == "" {
			return fmt.Errorf("%w: document %d is missing apiVersion or kind", ErrInvalidManifest, count)
		}
		nameCheck := validation.IsDNS1123Subdomain
		if u.GetKind() == "Namespace" {
			nameCheck = validation.IsDNS1123Label
		}
		if errs := nameCheck(u.GetName()); len(errs) > 0 {
			return fmt.Errorf("%w: %s %q: %s", ErrInvalidManifest, u.GetKind(), u.GetName(), strings.Join(errs, "; "))
		}
		if ns := u.GetNamespace(); ns != "" {
			if errs := validation.IsDNS1123Label(ns); len(errs) > 0 {
				return fmt.Errorf("%w: namespace %q: %s", ErrInvalidManifest, ns, strings.Join(errs, "; "))
			}
		}
	}
	if count == 0 {
		return fmt.Errorf("%w: no Kubernetes objects", ErrInvalidManifest)
	}
	return nil
}

// validateTerraform parses the configuration with the native HCL syntax
// parser and requires at least one resource block.
func validateTerraform(filename, text string) error {
	file, diags := hclparse.NewParser().ParseHCL([]byte(text), filename)
	if diags.HasErrors() {
		return fmt.Errorf("%w: %s", ErrInvalidManifest, diags.Error())
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return fmt.Errorf("%w: unexpected HCL body type %T", ErrInvalidManifest, file.Body)
	}
	for _, block := range body.Blocks {
		if block.Type == "resource" && len(block.Labels) == 2 {
			return nil
		}
	}
	return fmt.Errorf("%w: no resource blocks", ErrInvalidManifest)
}
