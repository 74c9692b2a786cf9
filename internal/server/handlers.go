package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/usecase"
)

const uploadMessage = "File uploaded, processed, and embeddings stored successfully"

type uploadRequest struct {
	FileName string `json:"fileName"`
	Text     string `json:"text"`
}

type uploadResponse struct {
	Message  string `json:"message"`
	FileName string `json:"fileName"`
	Text     string `json:"text"`
	Chunks   int    `json:"chunks"`
}

type searchRequest struct {
	FileName string `json:"fileName"`
	Query    string `json:"query"`
	TopK     int    `json:"topK,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	req, status, msg := s.readUpload(r)
	if status != 0 {
		s.respondError(w, status, msg)
		return
	}

	s.logger.Debug("upload request", zap.String("doc_id", req.DocID), zap.Int("bytes", len(req.Text)))
	res, err := s.ingest.Ingest(r.Context(), req, nil)
	if err != nil {
		s.respondStageError(w, err, "ingestion failed")
		return
	}

	s.respondJSON(w, http.StatusOK, uploadResponse{
		Message:  uploadMessage,
		FileName: res.DocID,
		Text:     req.Text,
		Chunks:   res.Chunks,
	})
}

// readUpload accepts a multipart "file" field or a JSON body. A non-zero
// status reports a client error.
func (s *Server) readUpload(r *http.Request) (usecase.IngestRequest, int, string) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var body uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return usecase.IngestRequest{}, http.StatusBadRequest, "invalid request body"
		}
		if !utf8.ValidString(body.Text) {
			return usecase.IngestRequest{}, http.StatusBadRequest, "text must be valid UTF-8"
		}
		docID := body.FileName
		if docID == "" {
			docID = uuid.NewString() + ".txt"
		}
		return usecase.IngestRequest{DocID: docID, Source: body.FileName, Text: body.Text}, 0, ""
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return usecase.IngestRequest{}, http.StatusBadRequest, "No file uploaded."
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return usecase.IngestRequest{}, http.StatusBadRequest, "failed to read upload"
	}
	if !isText(header.Header.Get("Content-Type"), header.Filename, data) {
		return usecase.IngestRequest{}, http.StatusBadRequest, "Unsupported file type."
	}

	// Stored names are the upload time in milliseconds plus the original
	// extension, so repeated uploads of one file get distinct IDs.
	docID := strconv.FormatInt(s.now().UnixMilli(), 10) + strings.ToLower(filepath.Ext(header.Filename))
	return usecase.IngestRequest{DocID: docID, Source: header.Filename, Text: string(data)}, 0, ""
}

func isText(contentType, name string, data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "text/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown", ".text":
		return true
	}
	return strings.HasPrefix(http.DetectContentType(data), "text/")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query not provided")
		return
	}

	s.logger.Debug("search request", zap.String("query", req.Query), zap.String("file_name", req.FileName))
	out, err := s.ask.Ask(r.Context(), usecase.AskRequest{Query: req.Query, DocID: req.FileName, TopK: req.TopK})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "File not found or text not extracted.")
			return
		}
		s.respondStageError(w, err, "could not generate response")
		return
	}

	s.respondJSON(w, http.StatusOK, []domain.GeneratedAnswer{out.Answer})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ingest.Documents()
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	s.respondJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.ingest.Document(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("doc_id", id))
	if err := s.ingest.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondStageError(w, err, "deletion failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondStageError maps pipeline errors to a status. Provider details stay
// in the log; clients only see the failing stage.
func (s *Server) respondStageError(w http.ResponseWriter, err error, message string) {
	stage := domain.StageOf(err)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}

	s.logger.Error(message, zap.String("stage", stage), zap.Error(err))
	body := map[string]string{"error": message}
	if stage != "" {
		body["stage"] = stage
	}
	s.respondJSON(w, http.StatusInternalServerError, body)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
