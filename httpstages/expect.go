package httpstages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dcshock/speechpipe/pipeline"
)

// ExpectSHA256 returns a step that fails unless the file at path has the
// given hex-encoded SHA-256 digest. An empty sum accepts any content.
func ExpectSHA256(path, sum string) pipeline.Step {
	want := strings.ToLower(strings.TrimSpace(sum))
	return func(ctx context.Context) error {
		if want == "" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("expect: %w", err)
		}
		defer f.Close()
		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return fmt.Errorf("expect: read %s: %w", path, err)
		}
		if got := hex.EncodeToString(h.Sum(nil)); got != want {
			return fmt.Errorf("expect: %s: sha256 %s, want %s", path, got, want)
		}
		return nil
	}
}
