package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileFetcher reads replays from local files. References are file paths;
// ".json" files are decoded like server responses, anything else is raw log
// text. ".gz" and ".zst" files are decompressed first.
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, ref string) (*Replay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()

	body, err := readBody(f, ref, "")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	kind := payloadRaw
	if strings.HasSuffix(stripCompression(ref), ".json") {
		kind = payloadJSON
	}
	return decodePayload(body, kind, replayID(filepath.ToSlash(ref)))
}
