package cmd

import (
	"fmt"

	"github.com/gantryhq/gantry/internal/platform"
	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage per-phase context manifests",
	Long: `Commands for the context manifests that scope what an agent may see
in each phase. Manifests are fully regenerated, never merged: their
content is a pure function of the platform and the task's dev type.`,
}

var contextGenerateCmd = &cobra.Command{
	Use:   "generate [task]",
	Short: "Write the three phase manifests for a task",
	Long: `Write context_implement.jsonl, context_check.jsonl and
context_debug.jsonl into the task directory, overwriting whatever was
there. Regenerating with the same platform and dev type is
byte-identical. Without an argument the current task is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContextGenerate,
}

var contextShowCmd = &cobra.Command{
	Use:   "show [task]",
	Short: "Show a task's context manifest for one phase",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runContextShow,
}

var (
	contextGeneratePlatform string
	contextShowPhase        string
)

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.AddCommand(contextGenerateCmd)
	contextCmd.AddCommand(contextShowCmd)

	contextGenerateCmd.Flags().StringVar(&contextGeneratePlatform, "platform", "", "Platform to generate for (default: detected)")
	contextShowCmd.Flags().StringVar(&contextShowPhase, "phase", "", "Phase to show (default: the task's current phase)")
}

func runContextGenerate(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	store, err := env.taskStore()
	if err != nil {
		return err
	}
	t, err := resolveTask(store, args)
	if err != nil {
		return err
	}

	configured := env.cfg.Platform
	if contextGeneratePlatform != "" {
		configured = contextGeneratePlatform
	}
	detection, err := platform.Detect(env.repoRoot, configured, env.logger)
	if err != nil {
		return err
	}

	if err := platform.GenerateContextFiles(detection.Adapter, store.TaskPath(t.ID), t.DevType); err != nil {
		return err
	}

	fmt.Printf("Generated context manifests for %s (%s, dev_type=%s)\n",
		t.ID, detection.Adapter.Name(), orUnset(string(t.DevType)))
	for _, phase := range platform.ManifestPhases() {
		fmt.Printf("  %s\n", platform.ManifestFileName(phase))
	}
	return nil
}

func runContextShow(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	store, err := env.taskStore()
	if err != nil {
		return err
	}
	t, err := resolveTask(store, args)
	if err != nil {
		return err
	}

	phase := contextShowPhase
	if phase == "" {
		phase = t.Phase()
	}
	if phase == "" {
		return fmt.Errorf("task has no phase plan, pass --phase explicitly")
	}
	if !validManifestPhase(phase) {
		return fmt.Errorf("unknown phase %q, manifests exist for: implement, check, debug", phase)
	}

	entries, err := platform.ReadManifest(platform.ManifestPath(store.TaskPath(t.ID), phase))
	if err != nil {
		return err
	}
	if entries == nil {
		fmt.Printf("No %s manifest for %s.\n", phase, t.ID)
		fmt.Println("Run 'gantry context generate' to write the manifests.")
		return nil
	}

	printHeader(fmt.Sprintf("%s: %s context (%d entries)", t.ID, phase, len(entries)))
	fmt.Println()
	for _, e := range entries {
		marker := " "
		if e.Kind() == platform.EntryTypeDirectory {
			marker = "/"
		}
		fmt.Printf("  %-32s %s\n", e.File+marker, mutedStyle.Render(e.Reason))
	}
	return nil
}

func validManifestPhase(phase string) bool {
	for _, p := range platform.ManifestPhases() {
		if p == phase {
			return true
		}
	}
	return false
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
