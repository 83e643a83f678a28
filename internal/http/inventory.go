package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"estoquefacil/internal/services"

	"github.com/go-chi/chi/v5"
)

const maxPhotoUpload = 5<<20 + 64<<10

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.Inventory.ListProducts(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"products": nonNil(products)})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req services.ProductInput
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.svc.Inventory.CreateProduct(r.Context(), accountIDFrom(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{"product": p})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Inventory.DeleteProduct(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

// handleUploadProductPhoto takes a multipart form with the image in "photo".
func (s *Server) handleUploadProductPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoUpload)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("photo must be sent as multipart/form-data up to 5MB"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("photo file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			s.respondServiceError(w, r, err)
			return
		}
	}

	p, err := s.svc.Inventory.UploadProductPhoto(r.Context(), accountIDFrom(r.Context()),
		chi.URLParam(r, "id"), contentType, header.Size, file)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"product": p})
}

type supplierRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.svc.Inventory.ListSuppliers(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"suppliers": nonNil(suppliers)})
}

func (s *Server) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sup, err := s.svc.Inventory.CreateSupplier(r.Context(), accountIDFrom(r.Context()), req.Name, req.Contact)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{"supplier": sup})
}

func (s *Server) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Inventory.DeleteSupplier(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.svc.Inventory.ListRecipes(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"recipes": nonNil(recipes)})
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req services.RecipeInput
	if !decodeJSON(w, r, &req) {
		return
	}
	recipe, err := s.svc.Inventory.CreateRecipe(r.Context(), accountIDFrom(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{"recipe": recipe})
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Inventory.DeleteRecipe(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

func (s *Server) handlePriceRecipe(w http.ResponseWriter, r *http.Request) {
	pricing, err := s.svc.Inventory.PriceRecipe(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"pricing": pricing})
}

func (s *Server) handleListShowcase(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Inventory.ListShowcaseItems(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (s *Server) handleCreateShowcaseItem(w http.ResponseWriter, r *http.Request) {
	var req services.ShowcaseInput
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.svc.Inventory.CreateShowcaseItem(r.Context(), accountIDFrom(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{"item": item})
}

func (s *Server) handleDeleteShowcaseItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Inventory.DeleteShowcaseItem(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

func (s *Server) handleInventoryValue(w http.ResponseWriter, r *http.Request) {
	value, err := s.svc.Inventory.Value(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"value": value})
}

func (s *Server) handleListConfigurations(w http.ResponseWriter, r *http.Request) {
	configs, err := s.svc.Configs.List(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"configurations": nonNil(configs)})
}

func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Configs.Get(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "type"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"configuration": cfg})
}

// handleSaveConfiguration stores the request body as the configuration
// payload for the type in the path.
func (s *Server) handleSaveConfiguration(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if !decodeJSON(w, r, &payload) {
		return
	}
	cfg, err := s.svc.Configs.Save(r.Context(), accountIDFrom(r.Context()), chi.URLParam(r, "type"), payload)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"configuration": cfg})
}
