package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/CTAG07/kgram/pkg/markov"
)

// ModelAPI holds the dependencies for the model API handlers.
type ModelAPI struct {
	store  *markov.Store
	config *ConfigManager
	cache  *modelCache
	logger *slog.Logger
}

// NewModelAPI creates a new instance of the ModelAPI.
func NewModelAPI(store *markov.Store, config *ConfigManager, logger *slog.Logger) *ModelAPI {
	return &ModelAPI{
		store:  store,
		config: config,
		cache:  newModelCache(),
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/models endpoints.
func (m *ModelAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/models", m.handleListAndCreateModels)
	mux.HandleFunc("/api/models/", m.handleModelByName)
	mux.HandleFunc("/api/import", m.handleImport)
}

type CreateModelRequest struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
	Text  string `json:"text"`
}

type GenerateRequest struct {
	Seed        string   `json:"seed"`
	Length      *int     `json:"length"`
	RngSeed     uint64   `json:"rng_seed"`
	Temperature *float64 `json:"temperature"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type RepairRequest struct {
	Text string `json:"text"`
}

type MostLikelyRequest struct {
	Context string `json:"context"`
}

type MostLikelyResponse struct {
	Char string `json:"char"`
}

type ProbabilityResponse struct {
	KGram               string  `json:"kgram"`
	Char                string  `json:"char"`
	Frequency           int     `json:"frequency"`
	TransitionFrequency int     `json:"transition_frequency"`
	Probability         float64 `json:"probability"`
}

type StatsResponse struct {
	Model markov.ModelInfo  `json:"model"`
	Stats markov.ModelStats `json:"stats"`
}

// handleListAndCreateModels handles GET for listing and POST for training models.
func (m *ModelAPI) handleListAndCreateModels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		models, err := m.store.ModelInfos(r.Context())
		if err != nil {
			m.logger.Error("Failed to get model infos", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve models: %v", err))
			return
		}
		// Convert map to slice for consistent JSON output
		modelList := make([]markov.ModelInfo, 0, len(models))
		for _, model := range models {
			modelList = append(modelList, model)
		}
		sort.Slice(modelList, func(i, j int) bool { return modelList[i].Name < modelList[j].Name })
		respondWithJSON(w, http.StatusOK, modelList)

	case http.MethodPost:
		var req CreateModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if req.Name == "" {
			respondWithError(w, http.StatusBadRequest, "Model name is required")
			return
		}
		if req.Order == 0 {
			req.Order = m.config.Get().Model.DefaultOrder
		}

		model, err := markov.New(req.Text, req.Order)
		if err != nil {
			respondWithModelError(w, err)
			return
		}
		info, err := m.store.SaveModel(r.Context(), req.Name, model)
		if err != nil {
			m.logger.Error("Failed to save new model", "name", req.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save model: %v", err))
			return
		}
		m.cache.put(req.Name, model)
		respondWithJSON(w, http.StatusCreated, info)

	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleModelByName routes actions for a specific model, e.g., generate, repair, export, delete.
func (m *ModelAPI) handleModelByName(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimPrefix(r.URL.Path, "/api/models/")
	parts := strings.Split(path, "/")
	modelName := parts[0]

	if modelName == "" {
		respondWithError(w, http.StatusBadRequest, "Model name not specified")
		return
	}

	if len(parts) == 1 { // Path is just /api/models/{name}
		if r.Method != http.MethodDelete {
			w.Header().Set("Allow", "DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if err := m.store.RemoveModel(r.Context(), modelName); err != nil {
			respondWithModelError(w, err)
			return
		}
		m.cache.remove(modelName)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	action := parts[1]
	method, known := modelActions[action]
	if !known || len(parts) > 2 {
		respondWithError(w, http.StatusNotFound, "Action not found")
		return
	}
	if r.Method != method {
		w.Header().Set("Allow", method)
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	model, err := m.model(r, modelName)
	if err != nil {
		respondWithModelError(w, err)
		return
	}

	switch action {
	case "stats":
		info, err := m.store.ModelInfo(r.Context(), modelName)
		if err != nil {
			respondWithModelError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, StatsResponse{Model: info, Stats: model.Stats()})

	case "generate":
		m.handleGenerate(w, r, modelName, model)

	case "repair":
		var req RepairRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		repaired, err := model.ReplaceUnknown(req.Text)
		if err != nil {
			respondWithModelError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, TextResponse{Text: repaired})

	case "most-likely":
		var req MostLikelyRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		c, err := model.MostLikely(req.Context)
		if err != nil {
			respondWithModelError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, MostLikelyResponse{Char: string(c)})

	case "probability":
		m.handleProbability(w, r, model)

	case "export":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.json\"", modelName))
		if err = model.Export(w); err != nil {
			m.logger.Error("Failed to export model", "name", modelName, "error", err)
		}
	}
}

// modelActions maps each per-model action to the method it accepts.
var modelActions = map[string]string{
	"stats":       http.MethodGet,
	"generate":    http.MethodPost,
	"repair":      http.MethodPost,
	"most-likely": http.MethodPost,
	"probability": http.MethodGet,
	"export":      http.MethodGet,
}

func (m *ModelAPI) handleGenerate(w http.ResponseWriter, r *http.Request, modelName string, model *markov.Model) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	limits := m.config.Get().Model
	length := limits.DefaultLength
	if req.Length != nil {
		length = *req.Length
	}
	if length > limits.MaxLength {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Length %d exceeds the maximum of %d", length, limits.MaxLength))
		return
	}
	if req.Seed == "" {
		req.Seed = model.MostFrequent()
	}

	opts := []markov.GenerateOption{markov.WithLogger(m.logger)}
	if req.Temperature != nil {
		opts = append(opts, markov.WithTemperature(*req.Temperature))
	}

	text, err := model.Generate(newRand(req.RngSeed), req.Seed, length, opts...)
	if err != nil {
		respondWithModelError(w, err)
		return
	}
	m.logger.Info("Generated text", "model", modelName, "length", length)
	respondWithJSON(w, http.StatusOK, TextResponse{Text: text})
}

func (m *ModelAPI) handleProbability(w http.ResponseWriter, r *http.Request, model *markov.Model) {
	query := r.URL.Query()
	kgram := query.Get("kgram")
	char := []rune(query.Get("char"))
	if len(char) != 1 {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'char' must be a single character")
		return
	}

	frequency, err := model.Frequency(kgram)
	if err != nil {
		respondWithModelError(w, err)
		return
	}
	transitionFrequency, _ := model.TransitionFrequency(kgram, char[0])
	probability, _ := model.Probability(kgram, char[0])

	respondWithJSON(w, http.StatusOK, ProbabilityResponse{
		KGram:               kgram,
		Char:                string(char),
		Frequency:           frequency,
		TransitionFrequency: transitionFrequency,
		Probability:         probability,
	})
}

// handleImport imports a model from an uploaded JSON export.
func (m *ModelAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}

	model, err := markov.Import(r.Body)
	if err != nil {
		m.logger.Error("Failed to import model", "error", err)
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Import failed: %v", err))
		return
	}
	info, err := m.store.SaveModel(r.Context(), name, model)
	if err != nil {
		m.logger.Error("Failed to save imported model", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Import failed: %v", err))
		return
	}
	m.cache.put(name, model)
	respondWithJSON(w, http.StatusCreated, info)
}

// model returns the named model, loading it from the store on a cache miss.
func (m *ModelAPI) model(r *http.Request, name string) (*markov.Model, error) {
	if model, ok := m.cache.get(name); ok {
		return model, nil
	}
	model, err := m.store.LoadModel(r.Context(), name)
	if err != nil {
		return nil, err
	}
	m.cache.put(name, model)
	return model, nil
}

// modelCache keeps loaded models in memory. Models are immutable, so a cached
// model can serve any number of concurrent requests.
type modelCache struct {
	mu     sync.RWMutex
	models map[string]*markov.Model
}

func newModelCache() *modelCache {
	return &modelCache{models: make(map[string]*markov.Model)}
}

func (c *modelCache) get(name string) (*markov.Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	model, ok := c.models[name]
	return model, ok
}

func (c *modelCache) put(name string, model *markov.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[name] = model
}

func (c *modelCache) remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.models, name)
}

// newRand returns a source seeded with seed, or nil (a fresh random source) for 0.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// statusFor maps model errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, markov.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, markov.ErrInvalidOrder),
		errors.Is(err, markov.ErrInvalidLength),
		errors.Is(err, markov.ErrInvalidTemperature),
		errors.Is(err, markov.ErrInsufficientContext),
		errors.Is(err, markov.ErrReservedRune),
		errors.Is(err, markov.ErrEmptyText):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondWithModelError(w http.ResponseWriter, err error) {
	respondWithError(w, statusFor(err), err.Error())
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
