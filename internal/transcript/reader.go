package transcript

import (
	"bufio"
	"encoding/json"
	"os"
)

// LatestAssistantText scans path for the last assistant record and returns
// its Text field, used by the announce flow ( step 2 "Read the
// latest assistant reply from the child session transcript").
func LatestAssistantText(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var latest string
	found := false
	for scanner.Scan() {
		line := scanner.Bytes()
		var probe struct {
			Role string `json:"role"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			continue
		}
		if probe.Role != "assistant" {
			continue
		}
		latest = probe.Text
		found = true
	}
	return latest, found
}
