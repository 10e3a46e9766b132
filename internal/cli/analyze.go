package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridia/attestor/internal/analyze"
	"github.com/veridia/attestor/internal/catalog"
	"github.com/veridia/attestor/internal/gate"
	"github.com/veridia/attestor/internal/inherit"
	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/retrieve"
	"github.com/veridia/attestor/internal/store/finding"
)

var (
	controlsPath    string
	evidencePath    string
	inheritancePath string
	assessmentID    string
	noRetrieval     bool
	analyzeTimeout  time.Duration
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <control-id>",
	Short: "Analyze one control against the indexed evidence",
	Long: `Analyze determines whether the available evidence satisfies a control.

The control requirement and linked evidence come from the catalog files;
document context comes from the vector index; provider inheritance can
short-circuit the analysis with a pre-approved narrative. The finding is
printed to stdout as JSON.

Example:
  attestor analyze AC-2 --controls controls.yaml --evidence evidence.yaml --assessment fy26
  attestor analyze PE-3 --controls controls.yaml --inheritance inheritance.yaml --assessment fy26`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&controlsPath, "controls", "", "control catalog YAML (required)")
	analyzeCmd.Flags().StringVar(&evidencePath, "evidence", "", "evidence reference YAML")
	analyzeCmd.Flags().StringVar(&inheritancePath, "inheritance", "", "provider inheritance YAML")
	analyzeCmd.Flags().StringVar(&assessmentID, "assessment", "", "assessment identifier (required)")
	analyzeCmd.Flags().BoolVar(&noRetrieval, "no-retrieval", false, "skip vector retrieval, use evidence metadata only")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 5*time.Minute, "analysis timeout")
	_ = analyzeCmd.MarkFlagRequired("controls")
	_ = analyzeCmd.MarkFlagRequired("assessment")
}

// analysisSetup bundles everything a control analysis needs.
type analysisSetup struct {
	analyzer *analyze.Analyzer
	controls []model.ControlRequirement
	evidence []model.EvidenceRef
	close    func()
}

// buildAnalysisSetup loads the catalogs and wires retrieval, inheritance,
// reasoning, the review gate, and the finding store.
func buildAnalysisSetup(ctx context.Context, cfg *model.Config) (*analysisSetup, error) {
	controls, err := catalog.LoadControls(controlsPath)
	if err != nil {
		return nil, err
	}

	var evidence []model.EvidenceRef
	if evidencePath != "" {
		if evidence, err = catalog.LoadEvidence(evidencePath); err != nil {
			return nil, err
		}
	}

	var resolver *inherit.Resolver
	inheritanceFile := inheritancePath
	if inheritanceFile == "" {
		inheritanceFile = cfg.Inheritance.CatalogPath
	}
	if inheritanceFile != "" {
		records, err := catalog.LoadInheritance(inheritanceFile)
		if err != nil {
			return nil, err
		}
		resolver = inherit.NewResolver(records, cfg.Inheritance.Providers)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	idx, closeIndex, err := newIndex(ctx, cfg, embedder.Dimensions())
	if err != nil {
		return nil, err
	}

	var retriever analyze.Retriever
	if !noRetrieval {
		retriever = retrieve.NewEngine(embedder, idx, newCache(cfg), cfg.Retrieval)
	}

	invoker, err := newReasoner(cfg)
	if err != nil {
		closeIndex()
		return nil, err
	}
	var reasoner analyze.Completer
	if invoker != nil {
		reasoner = invoker
	} else {
		fmt.Fprintf(os.Stderr, "Warning: no reasoning provider configured; findings will use the deterministic fallback\n")
	}

	findings, closeFindings, err := newFindingStore(ctx, cfg)
	if err != nil {
		closeIndex()
		return nil, err
	}

	analyzer := analyze.New(retriever, resolver, reasoner, gate.New(cfg.Gate), findings, cfg.Inheritance, verbose)
	return &analysisSetup{
		analyzer: analyzer,
		controls: controls,
		evidence: evidence,
		close: func() {
			closeFindings()
			closeIndex()
		},
	}, nil
}

// newFindingStore pairs the finding store with the index backend: postgres
// keeps history across runs, memory serves a single process.
func newFindingStore(ctx context.Context, cfg *model.Config) (finding.Store, func(), error) {
	if cfg.Index.Backend == "postgres" {
		s, err := finding.NewPostgresStore(ctx, cfg.Index.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return finding.NewMemoryStore(), func() {}, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	controlID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	setup, err := buildAnalysisSetup(ctx, cfg)
	if err != nil {
		return err
	}
	defer setup.close()

	var control *model.ControlRequirement
	for i := range setup.controls {
		if setup.controls[i].ID == controlID {
			control = &setup.controls[i]
			break
		}
	}
	if control == nil {
		return fmt.Errorf("control %s not found in %s", controlID, controlsPath)
	}

	f, err := setup.analyzer.Analyze(ctx, analyze.Request{
		Control:          *control,
		Evidence:         catalog.EvidenceForControl(setup.evidence, controlID),
		AssessmentID:     assessmentID,
		IncludeRetrieval: !noRetrieval,
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", controlID, err)
	}

	return printFinding(f)
}

func printFinding(f *model.Finding) error {
	out, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal finding: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
