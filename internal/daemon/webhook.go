package daemon

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/docpub/internal/gitops"
	"git.home.luguber.info/inful/docpub/internal/logfields"
	"git.home.luguber.info/inful/docpub/internal/pipeline"
)

// maxWebhookBody caps payload reads; push payloads are small.
const maxWebhookBody = 1 << 20

// pushPayload is the subset of a forge push event the daemon cares about.
type pushPayload struct {
	Ref   string `json:"ref"` // refs/heads/<branch>
	After string `json:"after,omitempty"`
	Repository struct {
		CloneURL string `json:"clone_url,omitempty"`
		FullName string `json:"full_name,omitempty"`
	} `json:"repository,omitempty"`
}

// webhookHandler accepts push events and enqueues a run when the pushed
// branch matches the configured source branch. Secret and branch are read
// per request so config reloads take effect without rebuilding the server.
type webhookHandler struct {
	secret       func() string
	sourceBranch func() string
	enqueue      func(RunRequest) error
}

func (h *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if secret := h.secret(); secret != "" {
		if !verifySignature(secret, body, r.Header.Get("X-Hub-Signature-256")) {
			slog.Warn("Webhook signature verification failed", slog.String("remote", r.RemoteAddr))
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	// Ping events carry no ref; acknowledge without enqueuing.
	if event := r.Header.Get("X-GitHub-Event"); event != "" && event != "push" {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ignored")
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	sourceBranch := h.sourceBranch()
	branch := strings.TrimPrefix(payload.Ref, "refs/heads/")
	if payload.Ref == "" || branch != sourceBranch {
		slog.Debug("Ignoring push to non-source branch",
			slog.String("ref", payload.Ref),
			logfields.Branch(sourceBranch))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ignored")
		return
	}

	reason := fmt.Sprintf("push %s", gitops.ShortHash(payload.After))
	if err := h.enqueue(RunRequest{Trigger: pipeline.TriggerWebhook, Reason: reason}); err != nil {
		slog.Warn("Failed to enqueue webhook run", logfields.Error(err))
		http.Error(w, "Queue full", http.StatusServiceUnavailable)
		return
	}

	slog.Info("Webhook accepted",
		logfields.Branch(branch),
		logfields.Commit(gitops.ShortHash(payload.After)),
		slog.String("repo", payload.Repository.FullName))
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprint(w, "queued")
}

// verifySignature checks a GitHub style sha256 HMAC signature header.
func verifySignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}
