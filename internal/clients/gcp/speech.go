package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/tutorbridge-backend/internal/pkg/ctxutil"
	"github.com/yungbote/tutorbridge-backend/internal/pkg/logger"
)

// Speech transcribes short utterance-length audio clips.
type Speech interface {
	Transcribe(ctx context.Context, audio []byte, format string) (*TranscriptResult, error)
	Close() error
}

type TranscriptResult struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

type speechService struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewSpeech(log *logger.Logger) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Speech")

	c, err := speech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &speechService{
		log:        slog,
		client:     c,
		maxRetries: 3,
	}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) Transcribe(ctx context.Context, audio []byte, format string) (*TranscriptResult, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if len(audio) == 0 {
		return &TranscriptResult{}, nil
	}

	encoding, err := encodingForFormat(format)
	if err != nil {
		return nil, err
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            16000,
			LanguageCode:               "en-US",
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	var resp *speechpb.RecognizeResponse
	for attempt := 0; ; attempt++ {
		resp, err = s.client.Recognize(ctx, req)
		if err == nil {
			break
		}
		if attempt >= s.maxRetries || !retryableSpeechErr(err) {
			return nil, fmt.Errorf("speech recognize: %w", err)
		}
		s.log.Warn("speech recognize retry", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}

	out := &TranscriptResult{}
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if out.Text != "" {
			out.Text += " "
		}
		out.Text += strings.TrimSpace(alts[0].GetTranscript())
		if alts[0].GetConfidence() > out.Confidence {
			out.Confidence = alts[0].GetConfidence()
		}
	}
	out.Text = strings.TrimSpace(out.Text)
	return out, nil
}

func encodingForFormat(format string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "wav", "linear16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "mp3":
		return speechpb.RecognitionConfig_MP3, nil
	case "ogg", "opus":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "flac":
		return speechpb.RecognitionConfig_FLAC, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			fmt.Errorf("unsupported audio format %q", format)
	}
}

func retryableSpeechErr(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
