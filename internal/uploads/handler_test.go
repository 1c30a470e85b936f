package uploads

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"cardscan-backend/internal/shared/server/middleware"
	"cardscan-backend/internal/shared/storage/object/memory"
)

type part struct {
	field, name string
	data        []byte
}

func newRouter(maxBytes int64) (*gin.Engine, *memory.Store) {
	gin.SetMode(gin.TestMode)
	store := memory.New()
	router := gin.New()
	router.Use(middleware.Session())
	NewHandler(&Service{Store: store}, maxBytes).RegisterRoutes(router.Group("/api/v1"))
	return router, store
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		fw, err := writer.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(p.data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadListAndDownload(t *testing.T) {
	router, _ := newRouter(0)
	img := pngBytes(t, 4, 4)
	body, ct := multipartBody(t,
		part{field: "files", name: "a.png", data: img},
		part{field: "files", name: "notes.pdf", data: []byte("%PDF-1.4")},
		part{field: "file", name: "b.jpg", data: []byte("jpeg-ish")},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(middleware.SessionHeader, "s1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		Files []Upload `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(created.Files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(created.Files))
	}
	if !created.Files[0].Displayable || created.Files[1].Displayable {
		t.Fatalf("unexpected displayable flags %+v", created.Files)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil)
	listReq.Header.Set(middleware.SessionHeader, "s1")
	listResp := httptest.NewRecorder()
	router.ServeHTTP(listResp, listReq)
	var listed struct {
		Files []Upload `json:"files"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Files) != 3 || listed.Files[0].Name != "a.png" || listed.Files[2].Name != "notes.pdf" {
		t.Fatalf("unexpected listing %+v", listed.Files)
	}

	otherReq := httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil)
	otherReq.Header.Set(middleware.SessionHeader, "s2")
	otherResp := httptest.NewRecorder()
	router.ServeHTTP(otherResp, otherReq)
	if bytes.Contains(otherResp.Body.Bytes(), []byte("a.png")) {
		t.Fatalf("sessions must not share files: %s", otherResp.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/a.png", nil)
	getReq.Header.Set(middleware.SessionHeader, "s1")
	getResp := httptest.NewRecorder()
	router.ServeHTTP(getResp, getReq)
	if getResp.Code != http.StatusOK || !bytes.Equal(getResp.Body.Bytes(), img) {
		t.Fatalf("unexpected download status=%d len=%d", getResp.Code, getResp.Body.Len())
	}
	if got := getResp.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	router, store := newRouter(0)
	body, ct := multipartBody(t,
		part{field: "files", name: "ok.png", data: []byte("x")},
		part{field: "files", name: "virus.exe", data: []byte("MZ")},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	objects, err := store.List(req.Context(), middleware.DefaultSessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 0 {
		t.Fatalf("nothing should be stored when a file is rejected, got %v", objects)
	}
}

func TestUploadRequiresFiles(t *testing.T) {
	router, _ := newRouter(0)
	body, ct := multipartBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	router, _ := newRouter(64)
	body, ct := multipartBody(t, part{field: "files", name: "big.png", data: bytes.Repeat([]byte("x"), 4096)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.Code)
	}
}

func TestDownloadMissing(t *testing.T) {
	router, _ := newRouter(0)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/nope.png", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
