package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anomi-sec/anomi/pkg/api"
	"github.com/anomi-sec/anomi/pkg/audit"
	"github.com/anomi-sec/anomi/pkg/config"
	"github.com/anomi-sec/anomi/pkg/ensemble"
	"github.com/anomi-sec/anomi/pkg/ingest"
	"github.com/anomi-sec/anomi/pkg/live"
	"github.com/anomi-sec/anomi/pkg/model"
	"github.com/anomi-sec/anomi/pkg/ratelimit"
	"github.com/anomi-sec/anomi/pkg/registry"
	"github.com/anomi-sec/anomi/pkg/report"
	"github.com/anomi-sec/anomi/pkg/store"
)

const Version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cfg := config.NewDefaultConfig()
		if len(os.Args) > 2 {
			cfg.ListenPort = os.Args[2]
		}
		runServer(cfg)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: anomid scan <log line>")
			os.Exit(1)
		}
		runCLIScan(strings.Join(os.Args[2:], " "))
	case "version":
		fmt.Printf("Anomi v%s\n", Version)
		fmt.Println("Ensemble log anomaly monitor")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Anomi v%s - Ensemble log anomaly monitor\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  anomid serve [port]     Start the monitoring backend (default: 5050)")
	fmt.Println("  anomid scan <log line>  Classify one log line and print the verdict")
	fmt.Println("  anomid version          Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  anomid serve 8080")
	fmt.Println("  anomid scan \"SQL Injection attempt from 192.168.1.1\"")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  ANOMI_DATABASE_URL   Postgres URL for durable jobs (default: in-memory)")
	fmt.Println("  ANOMI_REDIS_ADDR     Redis address for shared rate limiting")
	fmt.Println("  ANOMI_OLLAMA_URL     Ollama URL for the semantic member")
	fmt.Println("  ANOMI_MODEL_PATH     ONNX model directory for the transformer member")
	fmt.Println("  ANOMI_SEED_DIR       Directory holding seeds.yaml")
}

// buildMembers assembles the ensemble roster: the pure-Go members are
// always on; the semantic and transformer members join only when their
// backends are reachable.
func buildMembers(cfg *config.Config, corpus *ensemble.SeedCorpus) []ensemble.Member {
	members := []ensemble.Member{
		ensemble.NewSignatureMember(corpus),
		ensemble.NewEntropyMember(),
		ensemble.NewBayesMember(corpus),
	}
	log.Println("✓ Signature, entropy and token members enabled")

	if cfg.EnableSemantics {
		semantic, err := ensemble.NewSemanticMember(cfg.OllamaURL)
		if err != nil {
			log.Printf("○ Semantic member disabled (init failed: %v)", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			if err := semantic.LoadExemplars(ctx, corpus); err != nil {
				log.Printf("○ Semantic member disabled (exemplar load failed: %v)", err)
			} else {
				members = append(members, semantic)
				log.Println("✓ Semantic member enabled (chromem-go + Ollama embeddings)")
			}
			cancel()
		}
	} else {
		log.Println("○ Semantic member disabled")
	}

	if cfg.EnableTransformer {
		if tc := ensemble.AutoDetectTransformerConfig(); tc != nil {
			transformer, err := ensemble.NewTransformerMember(*tc)
			if err != nil {
				log.Printf("○ Transformer member disabled (init failed: %v)", err)
			} else {
				members = append(members, transformer)
				log.Println("✓ Transformer member enabled (hugot/ONNX)")
			}
		} else {
			log.Println("○ Transformer member disabled (no ONNX model found)")
		}
	} else {
		log.Println("○ Transformer member disabled")
	}

	return members
}

func runServer(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[STARTUP] Invalid configuration: %v", err)
	}

	corpus := ensemble.LoadSeedCorpus(cfg.SeedDir)
	classifier, err := ensemble.NewClassifier(buildMembers(cfg, corpus), cfg.MajorityThreshold)
	if err != nil {
		log.Fatalf("[STARTUP] Could not build classifier: %v", err)
	}
	log.Printf("[STARTUP] Ensemble roster: %s", strings.Join(classifier.MemberNames(), ", "))

	var (
		st  store.Store
		reg *registry.Registry
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			cancel()
			log.Fatalf("[STARTUP] Postgres unavailable: %v", err)
		}
		st = pg
		reg = registry.NewPersistent(ctx, pg)
		cancel()
		log.Println("✓ Job store: Postgres")
	} else {
		st = store.NewMemoryStore()
		reg = registry.New()
		log.Println("○ Job store: in-memory (set ANOMI_DATABASE_URL for durability)")
	}
	defer st.Close()

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitMax, cfg.RateLimitWindow)
		log.Println("✓ Rate limiter: Redis")
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		log.Println("○ Rate limiter: in-process (set ANOMI_REDIS_ADDR to share across replicas)")
	}

	bc := live.New(cfg.LiveBufferSize, cfg.SubscriberQueue)
	auditLog := audit.NewLogger(cfg.AuditLogPath)
	gw := ingest.NewGateway(classifier, st, reg, bc, auditLog, cfg.BatchWorkers)
	agg := report.NewAggregator(st, bc, reg, cfg.EvictionThreshold)

	api.Version = Version
	server := api.NewServer(cfg, gw, st, reg, bc, agg, limiter)

	log.Printf("[STARTUP] Anomi v%s listening on :%s", Version, cfg.ListenPort)
	if err := server.Listen(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func runCLIScan(line string) {
	cfg := config.NewDefaultConfig()
	corpus := ensemble.LoadSeedCorpus(cfg.SeedDir)

	classifier, err := ensemble.NewClassifier(buildMembers(cfg, corpus), cfg.MajorityThreshold)
	if err != nil {
		log.Fatalf("Could not build classifier: %v", err)
	}

	verdict, err := classifier.Classify(context.Background(), model.NewTextRecord(line), "live")
	if err != nil {
		log.Fatalf("Classification failed: %v", err)
	}

	out, _ := json.MarshalIndent(verdict, "", "  ")
	fmt.Println(string(out))

	if verdict.IsAttack {
		os.Exit(2)
	}
}
