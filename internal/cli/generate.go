package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/prota/internal/generator"
	"github.com/dukerupert/prota/internal/model"
	"github.com/dukerupert/prota/internal/server"
)

var (
	generateEnergy   string
	generateCategory string
	generateMax      int
)

var generateCmd = &cobra.Command{
	Use:   "generate <goal...>",
	Short: "Print micro-tasks for a goal without storing anything",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateEnergy, "energy", "e", "", "energy level: tired, normal or motivated")
	generateCmd.Flags().StringVar(&generateCategory, "category", "", "category hint: body, mind or work")
	generateCmd.Flags().IntVarP(&generateMax, "max", "n", 0, "maximum number of tasks")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}

	energy, ok := model.NormalizeEnergy(generateEnergy)
	if !ok {
		return fmt.Errorf("unknown energy level %q", generateEnergy)
	}

	gen := generator.New(server.NewAIClient(e.cfg), e.logger)
	ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.AI.Timeout+5*time.Second)
	defer cancel()

	goal := strings.Join(args, " ")
	res := gen.Generate(ctx, generator.Request{
		Goal:     goal,
		Category: generateCategory,
		Energy:   energy,
		MaxTasks: generateMax,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Goal: %s (%s)\n\n", goal, res.Source)
	for i, t := range res.Tasks {
		fmt.Fprintf(out, "%d. %s [%d min]\n", i+1, t.Title, t.EstimatedTime)
		if t.Description != "" {
			fmt.Fprintf(out, "   %s\n", t.Description)
		}
	}
	fmt.Fprintf(out, "\n%s\n", res.Coaching)
	return nil
}
