package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/metapromptlabs/metaprompt/internal/engine"
	"github.com/metapromptlabs/metaprompt/internal/logging"
)

var (
	processPrompt      string
	processModel       string
	processSession     string
	processTemplate    string
	processSafetyLevel string
	processPrefs       []string
	processJSON        bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one prompt through the full pipeline",
	Long: `Runs a single prompt through context analysis, memory merge, template
rendering, the safety pre-check, provider routing, and the output review,
then commits the exchange to session memory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if processPrompt == "" && len(args) > 0 {
			processPrompt = args[0]
		}
		if processPrompt == "" {
			return fmt.Errorf("a prompt is required: use --prompt or a positional argument")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		warnIfMissingKeys(cfg)

		prefs, err := parsePrefs(processPrefs)
		if err != nil {
			return err
		}

		logger := logging.New(verbose)
		defer logger.Sync()

		eng, _, closeStore, err := buildEngine(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := eng.ProcessPrompt(context.Background(), engine.PromptRequest{
			Prompt:      processPrompt,
			SessionID:   processSession,
			Model:       processModel,
			TemplateID:  processTemplate,
			SafetyLevel: processSafetyLevel,
			Preferences: prefs,
		})
		if err != nil {
			if ee, ok := engine.AsError(err); ok && ee.Kind == engine.KindSafetyViolation && ee.Assessment != nil {
				fmt.Fprintf(os.Stderr, "Rejected by safety check (%s, risk %s): rules %v\n",
					ee.Assessment.Level, ee.Assessment.RiskLevel, ee.Assessment.TriggeredRules)
				for _, rec := range ee.Assessment.Recommendations {
					fmt.Fprintf(os.Stderr, "  - %s\n", rec)
				}
			}
			return err
		}

		if processJSON {
			return json.NewEncoder(os.Stdout).Encode(res)
		}

		fmt.Println(res.Output)
		if verbose {
			fmt.Fprintf(os.Stderr, "\n--- pipeline ---\n")
			fmt.Fprintf(os.Stderr, "template:   %s (level %s)\n", res.Metadata.TemplateID, res.Metadata.AdaptationLevel)
			if res.Metadata.Routing != nil {
				fmt.Fprintf(os.Stderr, "model:      %s/%s (%d attempt(s))\n",
					res.Metadata.Routing.Used.Provider, res.Metadata.Routing.Used.Model, res.Metadata.Routing.AttemptCount)
				fmt.Fprintf(os.Stderr, "est. cost:  $%.5f\n", res.Metadata.Routing.EstimatedCost)
			}
			fmt.Fprintf(os.Stderr, "confidence: %.2f\n", res.Confidence)
			fmt.Fprintf(os.Stderr, "elapsed:    %s\n", res.Elapsed)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVarP(&processPrompt, "prompt", "p", "", "prompt text")
	processCmd.Flags().StringVarP(&processModel, "model", "m", "", "preferred model (falls back across the routing table)")
	processCmd.Flags().StringVarP(&processSession, "session", "s", "", "session id for memory continuity")
	processCmd.Flags().StringVarP(&processTemplate, "template", "t", "", "template id (default: derived from intent)")
	processCmd.Flags().StringVar(&processSafetyLevel, "safety-level", "", "safety level: strict, standard, or permissive")
	processCmd.Flags().StringArrayVar(&processPrefs, "pref", nil, "session preference key=value (repeatable)")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(processCmd)
}
