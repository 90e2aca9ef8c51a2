package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"

	"dosegamma/pkg/comparison"
	"dosegamma/pkg/config"
)

func main() {
	// Parse command line arguments
	referencePath := flag.String("reference", "", "Reference dose (.dcm RT Dose or .yaml grid)")
	evaluationPath := flag.String("evaluation", "", "Evaluation dose (.dcm RT Dose or .yaml grid)")
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	dosePercent := flag.Float64("dose", 0, "Dose difference criterion in percent (overrides config)")
	dta := flag.Float64("dta", 0, "Distance to agreement in mm (overrides config)")
	cutoff := flag.Float64("cutoff", -1, "Lower dose cutoff in absolute dose (overrides config)")
	percentCutoff := flag.Float64("percent-cutoff", -1, "Lower dose cutoff in percent of the normalisation dose (overrides config)")
	interp := flag.Int("interp", 0, "Evaluation grid interpolation fraction (overrides config)")
	maxGamma := flag.Float64("max-gamma", 2, "Gamma cap; inf means unbounded (overrides config)")
	local := flag.Bool("local", false, "Use local dose normalisation")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: config or all available)")
	search := flag.String("search", "", "Candidate search: grid, kdtree or exhaustive (overrides config)")
	outputDir := flag.String("output", "gamma_results", "Directory to save results")
	slices := flag.Bool("slices", false, "Save gamma map slices along every axis")
	quiet := flag.Bool("quiet", false, "Only print the summary")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *referencePath == "" || *evaluationPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}

	// Flags set explicitly override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dose":
			cfg.Gamma.DosePercentThreshold = *dosePercent
		case "dta":
			cfg.Gamma.DistanceMMThreshold = *dta
		case "cutoff":
			cfg.Gamma.LowerDoseCutoff = *cutoff
		case "percent-cutoff":
			cfg.Gamma.LowerPercentDoseCutoff = *percentCutoff
		case "interp":
			cfg.Gamma.InterpFraction = *interp
		case "max-gamma":
			cfg.Gamma.MaxGamma = *maxGamma
		case "local":
			cfg.Gamma.LocalGamma = *local
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "search":
			cfg.Processing.Search = *search
		case "slices":
			cfg.Output.SaveSlices = *slices
		case "quiet":
			cfg.Output.Verbose = !*quiet
		}
	})

	p := cfg.GammaParams()
	fmt.Println("================================")
	fmt.Println("GAMMA INDEX DOSE COMPARISON")
	fmt.Printf("%g%% / %gmm, %s normalisation\n", p.DosePercentThreshold, p.DistanceMMThreshold, p.Mode())
	fmt.Println("================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	comparator := comparison.NewComparator(&comparison.Params{
		ReferencePath:  *referencePath,
		EvaluationPath: *evaluationPath,
		OutputDir:      *outputDir,
		Config:         cfg,
	})
	if err := comparator.Process(ctx); err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}

	res := comparator.GetResult()
	meta := res.Metadata
	fmt.Printf("\nComparison completed in %.2f seconds\n", comparator.Elapsed().Seconds())
	fmt.Printf("Run ID: %s\n\n", comparator.ID())

	fmt.Println("Gamma Summary:")
	fmt.Println("==============")
	fmt.Printf("Normalisation dose:  %.4g (%s)\n", meta.NormalisationDose, meta.Normalisation)
	fmt.Printf("Dose cutoff:         %.4g\n", meta.Cutoff)
	fmt.Printf("Points evaluated:    %d of %d qualifying\n", meta.Evaluated, meta.Qualifying)
	fmt.Printf("Search strategy:     %s\n", meta.Search)
	if math.IsNaN(res.PassRate()) {
		fmt.Println("Pass rate:           n/a (no points above cutoff)")
	} else {
		fmt.Printf("Pass rate:           %.2f%% (%d/%d)\n", res.PassRate()*100, res.Summary.Passed, res.Summary.Count)
		fmt.Printf("Mean gamma:          %.3f\n", res.Mean())
		fmt.Printf("Max gamma:           %.3f\n", res.Max())
	}

	if outputs := comparator.Outputs(); len(outputs) > 0 {
		fmt.Println("\nResults saved to:")
		for _, o := range outputs {
			fmt.Printf("- %s\n", o)
		}
	}
}
