package cli

import (
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"text/tabwriter"
	"time"

	"foodval-go/internal/assets"
	"foodval-go/internal/experiment"
	"foodval-go/internal/models"

	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	var configFile string
	var imageRoot string
	var seed int64

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the trial sequence a participant would see",
		Long:  "Load an experiment document and image folders, draw one session and print both phase timelines. Nothing is recorded.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			return plan(cmd.OutOrStdout(), configFile, imageRoot, seed)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "config/experiment.json", "Experiment document")
	cmd.Flags().StringVar(&imageRoot, "images", "images", "Directory holding old-images/ and new-images/")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed; 0 picks one from the clock")

	return cmd
}

func plan(out io.Writer, configFile, imageRoot string, seed int64) error {
	exp, err := models.LoadExperiment(configFile)
	if err != nil {
		return err
	}

	r := rand.New(rand.NewSource(seed))
	sets, err := experiment.BuildImageSets(exp.Config, assets.DirCatalog{Root: imageRoot}, r)
	if err != nil {
		return err
	}

	checks := exp.Config.AttentionChecks
	phases := []struct {
		images    []models.Image
		positions []int
	}{
		{sets.Phase1, checks.Phase1.Positions},
		{sets.Phase2, checks.Phase2.Positions},
	}

	fmt.Fprintf(out, "seed %d\n", seed)
	for i, p := range phases {
		phase := i + 1
		timeline, err := experiment.BuildTimeline(phase, p.images, p.positions)
		if err != nil {
			return fmt.Errorf("phase %d: %w", phase, err)
		}

		fmt.Fprintf(out, "\nPhase %d: %d images, %d attention checks\n", phase, timeline.Images, timeline.Len()-timeline.Images)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tKIND\tIMAGE\tFILE\tSIZE\tTYPE\tQUESTION")
		for n, step := range timeline.Steps {
			if step.Kind == experiment.StepAttention {
				q := exp.AttentionCheckQuestions[experiment.QuestionIndex(phase, step.AttentionIndex)]
				fmt.Fprintf(w, "%d\t%s\t\t\t\t\t%s\n", n+1, step.Kind, q.ID)
				continue
			}
			img := step.Image
			kind := ""
			if phase == 2 {
				kind = experiment.ImageTypeNew
				if img.IsOld {
					kind = experiment.ImageTypeOld
				}
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n", n+1, step.Kind, strconv.Itoa(img.ID), img.Filename, img.Size, kind)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
