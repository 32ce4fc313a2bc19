package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"google.golang.org/genai"
)

var fakePNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestHuggingFaceGenerateImage(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "image/png")
		w.Write(fakePNG)
	}))
	defer srv.Close()

	hf, err := NewHuggingFace("hf_token", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewHuggingFace: %v", err)
	}
	img, err := hf.GenerateImage(context.Background(), "a fox")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if gotAuth != "Bearer hf_token" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotBody != `{"inputs":"a fox"}` {
		t.Errorf("unexpected body %q", gotBody)
	}
	if img.Extension != "png" || len(img.Data) != len(fakePNG) {
		t.Errorf("unexpected image %+v", img)
	}
}

func TestHuggingFaceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"Model is currently loading"}`)
	}))
	defer srv.Close()

	hf, err := NewHuggingFace("hf_token", srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	_, err = hf.GenerateImage(context.Background(), "a fox")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.UpstreamStatus() != http.StatusServiceUnavailable {
		t.Errorf("unexpected status %d", upstream.StatusCode)
	}
	if !strings.Contains(upstream.Body, "currently loading") {
		t.Errorf("upstream body not propagated: %q", upstream.Body)
	}
}

func TestNewHuggingFaceRequiresToken(t *testing.T) {
	if _, err := NewHuggingFace("  ", "", nil); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestOpenRouterStream(t *testing.T) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(fakePNG)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"here you go\"}}]}\n\n")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"images\":[{\"type\":\"image_url\",\"image_url\":{\"url\":%q}}]}}]}\n\n", dataURL)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	or, err := NewOpenRouter("key", srv.URL, "test/model")
	if err != nil {
		t.Fatal(err)
	}
	img, err := or.GenerateImage(context.Background(), "a fox")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.Extension != "png" || string(img.Data) != string(fakePNG) {
		t.Errorf("unexpected image %+v", img)
	}
}

func TestOpenRouterNoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"sorry\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	or, err := NewOpenRouter("key", srv.URL, "test/model")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := or.GenerateImage(context.Background(), "a fox"); err == nil {
		t.Fatal("expected error when stream has no image")
	}
}

type fakeVolcClient struct {
	resp volcModel.ImagesResponse
	err  error
	req  volcModel.GenerateImagesRequest
}

func (f *fakeVolcClient) GenerateImages(_ context.Context, req volcModel.GenerateImagesRequest) (volcModel.ImagesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestVolcengineDownloadsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	url := srv.URL + "/img.jpg"
	fake := &fakeVolcClient{resp: volcModel.ImagesResponse{Data: []*volcModel.Image{{Url: &url}}}}
	v := &Volcengine{client: fake, httpClient: srv.Client(), model: "seedream", size: "1024x1024"}

	img, err := v.GenerateImage(context.Background(), "a fox")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.Extension != "jpg" || string(img.Data) != "jpeg-bytes" {
		t.Errorf("unexpected image %+v", img)
	}
	if fake.req.Prompt != "a fox" || fake.req.Model != "seedream" {
		t.Errorf("unexpected request %+v", fake.req)
	}
}

func TestVolcengineEmptyResponse(t *testing.T) {
	v := &Volcengine{client: &fakeVolcClient{}, httpClient: http.DefaultClient, model: "m"}
	if _, err := v.GenerateImage(context.Background(), "a fox"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

type fakeGeminiModels struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f fakeGeminiModels) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return f.resp, f.err
}

func TestGeminiGenerateImage(t *testing.T) {
	tests := []struct {
		name       string
		models     fakeGeminiModels
		wantErr    bool
		wantStatus int
	}{
		{
			name: "返回内联图片",
			models: fakeGeminiModels{resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
					{Text: "here"},
					{InlineData: &genai.Blob{MIMEType: "image/png", Data: fakePNG}},
				}}}},
			}},
		},
		{
			name: "只有文本",
			models: fakeGeminiModels{resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "no"}}}}},
			}},
			wantErr: true,
		},
		{
			name:       "上游错误",
			models:     fakeGeminiModels{err: genai.APIError{Code: 429, Message: "quota"}},
			wantErr:    true,
			wantStatus: 429,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &GeminiService{models: tt.models, model: "gemini-image"}
			img, err := g.GenerateImage(context.Background(), "a fox")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.wantStatus != 0 {
					var upstream *UpstreamError
					if !errors.As(err, &upstream) || upstream.StatusCode != tt.wantStatus {
						t.Fatalf("expected upstream status %d, got %v", tt.wantStatus, err)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.Extension != "png" {
				t.Errorf("unexpected extension %q", img.Extension)
			}
		})
	}
}
