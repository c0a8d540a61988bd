package newsloop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	pathListAudio   = "/v1/getaudio_files"
	pathDeleteAudio = "/v1/delete_audiofile"
)

// AudioService lists and deletes the user's generated audio files.
type AudioService struct {
	client *Client
}

// List returns the signed URLs of the user's audio files, newest first as
// ordered by the server.
//
// A non-2xx status is returned as *Error; the caller decides whether that
// means the session is gone. A body that is not a JSON object, or whose
// audio_files array holds something other than strings, yields
// ErrInvalidResponse. A missing or non-array audio_files is an empty list.
func (s *AudioService) List(ctx context.Context) ([]string, error) {
	body, err := s.client.call(ctx, http.MethodGet, pathListAudio, nil)
	if err != nil {
		return nil, err
	}
	return parseAudioFiles(body)
}

func parseAudioFiles(body []byte) ([]string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		return nil, fmt.Errorf("%w: audio file listing is not an object", ErrInvalidResponse)
	}

	raw, ok := envelope["audio_files"]
	if !ok {
		return []string{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		// null, a string, an object: nothing playable
		return []string{}, nil
	}

	urls := make([]string, 0, len(items))
	for i, item := range items {
		var u string
		if err := json.Unmarshal(item, &u); err != nil {
			return nil, fmt.Errorf("%w: audio_files[%d] is not a string", ErrInvalidResponse, i)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// Delete removes one audio file. objectName is the "<bucket>/<object>"
// key derived from the file's URL. The call is never retried.
func (s *AudioService) Delete(ctx context.Context, objectName string) error {
	req := deleteRequest{ObjectName: objectName}
	if err := check(ErrInvalidRequest, req); err != nil {
		return err
	}

	body, err := s.client.call(ctx, http.MethodPost, pathDeleteAudio, req)
	if err != nil {
		return err
	}

	// The body is ignored beyond confirming it parses.
	if len(body) > 0 && !json.Valid(body) {
		return fmt.Errorf("%w: delete response is not JSON", ErrInvalidResponse)
	}
	return nil
}
