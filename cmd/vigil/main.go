// Command vigil is the pharmacovigilance adverse event pipeline.
//
// It serves the MCP tool surface over stdio, runs the scheduled
// pending-case and pattern sweeps, and offers one-shot workflow runs and
// database seeding for local development.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hurttlocker/vigil/internal/agent"
	"github.com/hurttlocker/vigil/internal/classify"
	"github.com/hurttlocker/vigil/internal/config"
	"github.com/hurttlocker/vigil/internal/extract"
	"github.com/hurttlocker/vigil/internal/llm"
	"github.com/hurttlocker/vigil/internal/logging"
	"github.com/hurttlocker/vigil/internal/mcp"
	"github.com/hurttlocker/vigil/internal/store"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "agent":
		if err := runAgent(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "seed":
		if err := runSeed(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("vigil %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// cliFlags are the overrides shared by the serve and agent commands.
type cliFlags struct {
	configPath string
	dbPath     string
	model      string
}

func parseFlags(args []string) (cliFlags, []string, error) {
	var f cliFlags
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config":
			if i+1 >= len(args) {
				return f, nil, fmt.Errorf("--config requires a path")
			}
			i++
			f.configPath = args[i]
		case arg == "--db":
			if i+1 >= len(args) {
				return f, nil, fmt.Errorf("--db requires a path")
			}
			i++
			f.dbPath = args[i]
		case arg == "--model":
			if i+1 >= len(args) {
				return f, nil, fmt.Errorf("--model requires provider/model")
			}
			i++
			f.model = args[i]
		case strings.HasPrefix(arg, "-"):
			return f, nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			rest = append(rest, arg)
		}
	}
	return f, rest, nil
}

// pipeline is the fully wired processing stack.
type pipeline struct {
	cfg        config.ResolvedConfig
	log        *zap.SugaredLogger
	store      store.Store
	extractor  *extract.Engine
	classifier *classify.Engine
	agent      *agent.Agent
	pool       *agent.Pool
}

func buildPipeline(f cliFlags) (*pipeline, func(), error) {
	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: f.configPath,
		CLIDBPath:  f.dbPath,
		CLIModel:   f.model,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("resolving config: %w", err)
	}

	log, err := logging.New(cfg.LogMode.Value)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	extractModel := cfg.EffectiveModel("extract")
	extractCfg, err := llm.ParseModelFlag(extractModel.Value)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	extractCfg.APIKey = cfg.APIKeyForProvider(extractModel.Value).Value
	extractProvider, err := llm.NewProvider(extractCfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	classifyModel := cfg.EffectiveModel("classify")
	classifyCfg, err := llm.ParseModelFlag(classifyModel.Value)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	classifyCfg.APIKey = cfg.APIKeyForProvider(classifyModel.Value).Value
	classifyProvider, err := llm.NewProvider(classifyCfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	p := &pipeline{
		cfg:        cfg,
		log:        log,
		store:      st,
		extractor:  extract.NewEngine(extractProvider, extractCfg.Model),
		classifier: classify.NewEngine(classifyProvider, classifyCfg.Model, st),
	}
	p.agent = agent.New(st, p.classifier, log)
	p.pool = agent.NewPool(agent.DefaultCoreWorkers, agent.DefaultPeakWorkers, agent.DefaultQueueSize, log)

	cleanup := func() {
		p.pool.Close()
		st.Close()
		log.Sync()
	}
	return p, cleanup, nil
}

func runServe(args []string) error {
	f, _, err := parseFlags(args)
	if err != nil {
		return err
	}

	p, cleanup, err := buildPipeline(f)
	if err != nil {
		return err
	}
	defer cleanup()

	sched := agent.NewScheduler(p.store, p.agent, p.pool, p.classifier, agent.SchedulerConfig{
		SweepInterval:  p.cfg.SweepInterval,
		StaleThreshold: p.cfg.StaleThreshold,
		PatternCron:    p.cfg.PatternCron,
	}, p.log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:      p.store,
		Extractor:  p.extractor,
		Classifier: p.classifier,
		Agent:      p.agent,
		Pool:       p.pool,
		Version:    version,
	})

	p.log.Infow("vigil MCP server starting",
		"version", version,
		"db", p.cfg.DBPath.Value,
		"extract_model", p.cfg.EffectiveModel("extract").Value,
		"classify_model", p.cfg.EffectiveModel("classify").Value)

	return mcpserver.ServeStdio(srv)
}

func runAgent(args []string) error {
	f, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("usage: vigil agent <case-id>")
	}
	id, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid case id %q", rest[0])
	}

	p, cleanup, err := buildPipeline(f)
	if err != nil {
		return err
	}
	defer cleanup()

	p.agent.Process(context.Background(), id)
	fmt.Printf("Workflow run completed for case %d\n", id)
	return nil
}

func runSeed(args []string) error {
	f, _, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: f.configPath,
		CLIDBPath:  f.dbPath,
	})
	if err != nil {
		return err
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := seed(ctx, st); err != nil {
		return err
	}
	fmt.Println("Sample data created")
	return nil
}

// seed loads sample patients, drugs, and cases for local development.
func seed(ctx context.Context, st store.Store) error {
	patients := []*store.Patient{
		{
			PatientID:          "P001",
			FirstName:          "John",
			LastName:           "Doe",
			Gender:             "MALE",
			DateOfBirth:        "1980-05-15",
			MedicalHistory:     "Hypertension, Diabetes Type 2",
			Allergies:          "Penicillin",
			CurrentMedications: "Metformin, Lisinopril",
		},
		{
			PatientID:          "P002",
			FirstName:          "Jane",
			LastName:           "Smith",
			Gender:             "FEMALE",
			DateOfBirth:        "1975-08-22",
			MedicalHistory:     "Asthma, Migraine",
			Allergies:          "None known",
			CurrentMedications: "Albuterol, Sumatriptan",
		},
	}
	for _, p := range patients {
		if _, err := st.SavePatient(ctx, p); err != nil {
			return fmt.Errorf("seeding patient %s: %w", p.PatientID, err)
		}
	}

	drugs := []*store.Drug{
		{
			DrugCode:            "ASP001",
			DrugName:            "Aspirin",
			GenericName:         "Acetylsalicylic Acid",
			Manufacturer:        "Bayer",
			KnownAdverseEffects: "Gastrointestinal bleeding, Nausea, Vomiting, Headache",
		},
		{
			DrugCode:            "MET001",
			DrugName:            "Metformin",
			GenericName:         "Metformin Hydrochloride",
			Manufacturer:        "Generic Pharma",
			KnownAdverseEffects: "Nausea, Diarrhea, Abdominal pain, Metallic taste",
		},
	}
	for _, d := range drugs {
		if _, err := st.SaveDrug(ctx, d); err != nil {
			return fmt.Errorf("seeding drug %s: %w", d.DrugCode, err)
		}
	}

	p1, err := st.GetPatientByExternalID(ctx, "P001")
	if err != nil {
		return err
	}
	p2, err := st.GetPatientByExternalID(ctx, "P002")
	if err != nil {
		return err
	}

	cases := []*store.Case{
		{
			CaseNumber:  "AE-2024-001",
			DrugName:    "Aspirin",
			Description: "Severe headache and nausea after taking aspirin",
			Severity:    store.SeverityModerate,
			Status:      store.StatusNew,
			Symptoms:    "Headache, Nausea, Dizziness",
			PatientID:   &p1.ID,
		},
		{
			CaseNumber:  "AE-2024-002",
			DrugName:    "Metformin",
			Description: "Gastrointestinal upset and metallic taste",
			Severity:    store.SeverityMild,
			Status:      store.StatusNew,
			Symptoms:    "Nausea, Metallic taste",
			PatientID:   &p2.ID,
		},
	}
	for _, c := range cases {
		if _, err := st.SaveCase(ctx, c); err != nil {
			return fmt.Errorf("seeding case %s: %w", c.CaseNumber, err)
		}
	}
	return nil
}

func printUsage() {
	fmt.Println(`vigil - pharmacovigilance adverse event pipeline

Usage:
  vigil serve [--config <path>] [--db <path>] [--model <provider/model>]
      Serve the MCP tool surface over stdio and run the scheduled sweeps.

  vigil agent <case-id> [--config <path>] [--db <path>] [--model <provider/model>]
      Run the workflow agent once for a single case.

  vigil seed [--config <path>] [--db <path>]
      Load sample patients, drugs, and adverse event cases.

  vigil version
      Print the version.

Environment:
  VIGIL_DB              Database path
  VIGIL_MODEL           provider/model for all AI calls
  VIGIL_MODEL_EXTRACT   Override model for extraction
  VIGIL_MODEL_CLASSIFY  Override model for classification
  VIGIL_LOG             Log mode (prod or dev)
  GEMINI_API_KEY        Google provider key
  OPENROUTER_API_KEY    OpenRouter provider key`)
}
