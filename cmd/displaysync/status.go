package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusOpts struct {
	jsonOut bool
}

// statusOutput is the machine-readable status shape.
type statusOutput struct {
	TemplateID   string `json:"template_id,omitempty"`
	TemplateType string `json:"template_type,omitempty"`
	Rendering    bool   `json:"rendering"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the template currently being synchronized",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.jsonOut, "json", false,
		"Output status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	templateID, templateType, rendering, err := client.Status()
	if err != nil {
		return err
	}

	if statusOpts.jsonOut {
		out := statusOutput{
			TemplateID:   templateID,
			TemplateType: templateType,
			Rendering:    rendering,
		}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if templateID == "" {
		fmt.Println("no active template")
		return nil
	}

	state := "synchronizing"
	if rendering {
		state = "rendering"
	}
	fmt.Printf("%s template %s (%s)\n", state, templateID, templateType)
	return nil
}
