package groq

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// errStreamDone signals the "[DONE]" sentinel internally; streamChatChunks
// translates it into a clean end of stream.
var errStreamDone = errors.New("stream done")

// streamChatChunks reads an OpenAI-dialect SSE body and invokes onChunk once
// per parsed completion chunk. The "[DONE]" sentinel ends the stream; comment
// lines and data that does not parse as a chunk (keep-alive noise) are
// skipped. The consumer may stop early by returning an error.
func streamChatChunks(r io.Reader, onChunk func(chunk chatCompletionChunk) error) error {
	br := bufio.NewReader(r)
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.TrimSpace(strings.Join(dataLines, "\n"))
		dataLines = nil
		if data == "" {
			return nil
		}
		if data == "[DONE]" {
			return errStreamDone
		}
		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if onChunk == nil {
			return nil
		}
		return onChunk(chunk)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if ferr := flush(); ferr != nil && !errors.Is(ferr, errStreamDone) {
					return ferr
				}
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends the event.
		if line == "" {
			if err := flush(); err != nil {
				if errors.Is(err, errStreamDone) {
					return nil
				}
				return err
			}
			continue
		}

		// Comment.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
