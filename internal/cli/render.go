package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/manifest"
	"github.com/platformhub/platformhub/internal/validation"
)

func newRenderCommand() *cobra.Command {
	var (
		resourceType string
		name         string
		env          string
		params       []string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render and validate a manifest without touching the database",
		Example: `  hubctl render --type k8s_namespace --name team-api --env staging --param team=platform
  hubctl render --type s3_bucket --name app-assets --env production --param versioning=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := models.ResourceType(resourceType)
			if !t.Valid() {
				return fmt.Errorf("unknown resource type %q", resourceType)
			}
			if err := validation.ResourceName(name); err != nil {
				return err
			}
			e := models.Environment(env)
			if !e.Valid() {
				return fmt.Errorf("environment must be one of dev, staging, production")
			}
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			if err := manifest.CheckParameters(t, values); err != nil {
				return err
			}
			if err := manifest.CheckIdentifier(t, name, e); err != nil {
				return err
			}

			text, err := manifest.Generate(t, name, e, values)
			if err != nil {
				return err
			}
			if err := manifest.Validate(t, text); err != nil {
				return fmt.Errorf("generated manifest failed validation: %w", err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&resourceType, "type", "", "resource type (k8s_namespace, s3_bucket, rds_database)")
	cmd.Flags().StringVar(&name, "name", "", "resource name")
	cmd.Flags().StringVar(&env, "env", "", "environment (dev, staging, production)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter as key=value, repeatable")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}

func parseParams(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
