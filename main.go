package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lordwilsonDev/transparency-log/authenticator"
	"github.com/lordwilsonDev/transparency-log/controllers"
	"github.com/lordwilsonDev/transparency-log/database"
	authmiddleware "github.com/lordwilsonDev/transparency-log/middleware"
	"github.com/lordwilsonDev/transparency-log/models"
	"github.com/lordwilsonDev/transparency-log/repositories"
	"github.com/lordwilsonDev/transparency-log/services"
	"github.com/lordwilsonDev/transparency-log/signer"
)

func main() {
	// Load environment variables from .env file when present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load the env vars: %v", err)
	}

	logAction := flag.String("log", "", "append an entry and exit (format: type:data)")
	verify := flag.Bool("verify", false, "verify chain integrity and exit")
	recent := flag.Int("recent", 0, "show the N most recent entries and exit")
	showRoot := flag.Bool("root", false, "show the current Merkle root and exit")
	showStats := flag.Bool("stats", false, "show log statistics and exit")
	checkpoint := flag.Bool("checkpoint", false, "print a signed root checkpoint and exit")
	flag.Parse()

	// Initialize database
	dbPath := os.Getenv("TLOG_DB_PATH")
	if dbPath == "" {
		dbPath = "transparency_log.db"
	}
	if err := database.InitializeDatabase(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	// Initialize repositories
	repos := repositories.NewRepositories(database.GetDB())

	// Initialize the signing collaborator
	sgn, err := buildSigner()
	if err != nil {
		log.Fatalf("Failed to initialize signer: %v", err)
	}

	// Initialize services
	srvs, err := services.NewServices(context.Background(), repos, sgn)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Command-line mode runs one operation against the local store
	if *logAction != "" || *verify || *recent > 0 || *showRoot || *showStats || *checkpoint {
		os.Exit(runCommand(srvs, *logAction, *verify, *recent, *showRoot, *showStats, *checkpoint))
	}

	// Initialize the bearer-token verifier
	auth, err := buildVerifier()
	if err != nil {
		log.Fatalf("Failed to initialize authentication: %v", err)
	}

	// Initialize controllers
	ctrl := controllers.NewControllers(srvs)

	// Set up router
	r := setupRouter(ctrl, auth, srvs)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("📜 Transparency log starting on port %s\n", port)
	fmt.Printf("🗃️  Database: %s\n", dbPath)
	fmt.Printf("🔏 Signer: %s | Auth: %s\n", srvs.Ledger.SignerMode(), auth.Mode())

	log.Fatal(http.ListenAndServe(":"+port, r))
}

// buildSigner selects the signing variant from the environment
func buildSigner() (signer.Signer, error) {
	timeout := 5 * time.Second
	if raw := os.Getenv("TLOG_SIGNER_TIMEOUT_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid TLOG_SIGNER_TIMEOUT_MS: %q", raw)
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	seed := os.Getenv("TLOG_SIGNING_KEY")
	if seed == "" {
		log.Println("⚠️  No signing key configured; entries will carry marked fallback signatures")
		return signer.NoSigner{}, nil
	}

	ed, err := signer.NewEd25519SignerFromSeed(seed)
	if err != nil {
		return nil, err
	}
	log.Printf("Signing with ed25519 key %s...", ed.PublicKeyHex()[:16])
	return signer.WithTimeout(ed, timeout), nil
}

// buildVerifier selects the bearer-token verifier from the environment
func buildVerifier() (authenticator.Verifier, error) {
	if token := os.Getenv("TLOG_API_TOKEN"); token != "" {
		return authenticator.NewStaticTokenVerifier(token)
	}

	if issuer := os.Getenv("OIDC_ISSUER"); issuer != "" {
		return authenticator.NewOIDCVerifier(context.Background(), authenticator.OIDCConfig{
			IssuerURL: issuer,
			ClientID:  os.Getenv("OIDC_CLIENT_ID"),
		})
	}

	return nil, fmt.Errorf("no authentication configured: set TLOG_API_TOKEN or OIDC_ISSUER")
}

// setupRouter configures all routes
func setupRouter(ctrl *controllers.Controllers, auth authenticator.Verifier, srvs *services.Services) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))

	// PUBLIC ROUTES (the log is transparent: reads need no token)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "service": "transparency-log", "signer": %q, "auth": %q}`,
			srvs.Ledger.SignerMode(), auth.Mode())
	})

	r.Route("/api/v1/log", func(r chi.Router) {
		r.Get("/recent", ctrl.Ledger.Recent)
		r.Get("/entry/{hash}", ctrl.Ledger.Entry)
		r.Get("/root", ctrl.Ledger.Root)
		r.Get("/verify", ctrl.Ledger.Verify)
		r.Get("/proof/{hash}", ctrl.Ledger.Proof)
		r.Get("/stats", ctrl.Ledger.Stats)
		r.Get("/checkpoint", ctrl.Ledger.Checkpoint)

		// PROTECTED ROUTES (appending requires a verified caller)
		r.Group(func(r chi.Router) {
			r.Use(authmiddleware.RequireAuth(auth))
			r.Post("/", ctrl.Ledger.Append)
		})
	})

	return r
}

// runCommand executes one local CLI operation and returns an exit code
func runCommand(srvs *services.Services, logAction string, verify bool, recent int, showRoot, showStats, checkpoint bool) int {
	ctx := context.Background()
	ledger := srvs.Ledger

	switch {
	case logAction != "":
		actionType, actionData, _ := strings.Cut(logAction, ":")

		result, err := ledger.Append(ctx, &models.AppendForm{ActionType: actionType, ActionData: actionData})
		if err != nil {
			fmt.Fprintf(os.Stderr, "append failed: %v\n", err)
			return 1
		}
		fmt.Printf("📜 Logged: %s\n", actionType)
		fmt.Printf("   Hash:   %.16s...\n", result.ActionHash)
		fmt.Printf("   Root:   %.16s...\n", result.MerkleRoot)
		if result.SignatureFallback {
			fmt.Println("   ⚠️  fallback signature (no trusted signer)")
		}

	case verify:
		result, err := ledger.VerifyChain(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify failed: %v\n", err)
			return 1
		}
		if result.Valid {
			fmt.Printf("✅ %s\n", result.Detail)
		} else {
			fmt.Printf("❌ %s\n", result.Detail)
			return 1
		}

	case recent > 0:
		entries, err := ledger.GetRecent(ctx, recent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lookup failed: %v\n", err)
			return 1
		}
		if len(entries) == 0 {
			fmt.Println("📜 Log is empty")
			break
		}
		fmt.Printf("📜 RECENT ENTRIES (%d)\n", len(entries))
		for _, entry := range entries {
			fmt.Printf("   [%s] #%d %s: %.40s\n",
				entry.Timestamp.Local().Format("15:04:05"), entry.SequenceID, entry.ActionType, entry.ActionData)
			fmt.Printf("          Hash: %.16s... | State: %d\n", entry.ActionHash, entry.AuxiliaryState)
		}

	case showRoot:
		fmt.Printf("🌳 Merkle Root: %s\n", ledger.MerkleRoot())

	case showStats:
		stats, err := ledger.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "stats failed: %v\n", err)
			return 1
		}
		fmt.Println("📊 TRANSPARENCY LOG STATISTICS")
		fmt.Printf("   entries:     %d\n", stats.Entries)
		fmt.Printf("   merkle_root: %s\n", stats.MerkleRoot)
		fmt.Printf("   chain_valid: %t\n", stats.ChainValid)
		fmt.Printf("   signer_mode: %s\n", stats.SignerMode)
		if stats.FirstEntry != nil && stats.LastEntry != nil {
			fmt.Printf("   first_entry: %s\n", stats.FirstEntry.Format(time.RFC3339))
			fmt.Printf("   last_entry:  %s\n", stats.LastEntry.Format(time.RFC3339))
		}

	case checkpoint:
		cp, err := ledger.Checkpoint(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "checkpoint failed: %v\n", err)
			return 1
		}
		payload, err := json.MarshalIndent(cp, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "checkpoint encoding failed: %v\n", err)
			return 1
		}
		fmt.Println(string(payload))
	}

	return 0
}
