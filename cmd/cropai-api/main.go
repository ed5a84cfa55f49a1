package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/Shivaya007/CROP-AI/internal/adapters/http"
	"github.com/Shivaya007/CROP-AI/internal/adapters/blob"
	"github.com/Shivaya007/CROP-AI/internal/adapters/identity"
	"github.com/Shivaya007/CROP-AI/internal/adapters/llm"
	newsapi "github.com/Shivaya007/CROP-AI/internal/adapters/news"
	firestorestore "github.com/Shivaya007/CROP-AI/internal/adapters/storage/firestore"
	memstore "github.com/Shivaya007/CROP-AI/internal/adapters/storage/memory"
	"github.com/Shivaya007/CROP-AI/internal/app/chat"
	"github.com/Shivaya007/CROP-AI/internal/app/diagnosis"
	newsapp "github.com/Shivaya007/CROP-AI/internal/app/news"
	"github.com/Shivaya007/CROP-AI/internal/app/todo"
	"github.com/Shivaya007/CROP-AI/internal/config"
	"github.com/Shivaya007/CROP-AI/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// LLM: mock or Gemini by config (useful for dev)
	var llmClient domain.LLMClient
	if cfg.UseMockLLM {
		log.Println("[LLM] Using MOCK LLM client")
		llmClient = llm.NewMockLLM()
	} else {
		log.Println("[LLM] Using Gemini LLM client")
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:    cfg.GeminiAPIKey,
			ProjectID: cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			log.Fatalf("error initializing Gemini client: %v", err)
		}
		llmClient = client
	}

	// Storage: Firestore or Memory
	var (
		diagnosisStore domain.DiagnosisStore
		messageStore   domain.MessageStore
		taskStore      domain.TaskStore
	)
	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}

		// 1 store, implements 3 interfaces
		diagnosisStore = fsStore
		messageStore = fsStore
		taskStore = fsStore

	default:
		log.Println("[STORE] Using in-memory storage")
		mem := memstore.NewStore()
		diagnosisStore = mem
		messageStore = mem
		taskStore = mem
	}

	// Blob store for crop photos
	var blobStore domain.BlobStore
	if cfg.StorageBucket != "" {
		log.Printf("[BLOB] Using GCS bucket %s", cfg.StorageBucket)
		gcs, err := blob.NewGCS(ctx, cfg.StorageBucket)
		if err != nil {
			log.Fatalf("error initializing GCS blob store: %v", err)
		}
		blobStore = gcs
	} else {
		log.Println("[BLOB] Using in-memory blob store")
		blobStore = blob.NewMemory()
	}

	// Identity provider
	var identityProvider domain.Identity
	if cfg.Mode == config.ModeGCP {
		log.Println("[AUTH] Using Firebase identity provider")
		fb, err := identity.NewFirebase(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firebase identity: %v", err)
		}
		identityProvider = fb
	} else {
		log.Println("[AUTH] Using static identity provider (local mode)")
		identityProvider = identity.NewStatic(&domain.User{
			ID:          "local-user",
			DisplayName: "Local Farmer",
			Email:       "farmer@localhost",
		})
	}

	// Services
	diagnosisSvc := diagnosis.NewService(llmClient, blobStore, diagnosisStore, messageStore, taskStore)
	chatMgr := chat.NewManager(llmClient, messageStore, cfg.InferenceTimeout)
	todoSvc := todo.NewService(taskStore)
	newsSvc := newsapp.NewService(newsapi.NewClient(cfg.NewsBaseURL, cfg.NewsAPIKey))

	// HTTP server
	handler := httpadapter.NewServer(diagnosisSvc, chatMgr, todoSvc, newsSvc, identityProvider)

	port := ":" + cfg.Port
	log.Println("Crop AI API listening on port:", port)
	if err := http.ListenAndServe(port, handler); err != nil {
		log.Fatal(err)
	}
}
