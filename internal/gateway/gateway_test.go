package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adforge/adforge-api/internal/openai"
)

// stubClient implements openai.Client with pluggable behavior per method.
type stubClient struct {
	createResponse       func(ctx context.Context, req openai.ResponseRequest) (openai.Response, error)
	getResponse          func(ctx context.Context, id string) (openai.Response, error)
	createVideo          func(ctx context.Context, req openai.VideoRequest) (openai.Video, error)
	getVideo             func(ctx context.Context, id string) (openai.Video, error)
	downloadVideoContent func(ctx context.Context, id string) ([]byte, error)
}

func (s *stubClient) CreateResponse(ctx context.Context, req openai.ResponseRequest) (openai.Response, error) {
	return s.createResponse(ctx, req)
}

func (s *stubClient) GetResponse(ctx context.Context, id string) (openai.Response, error) {
	return s.getResponse(ctx, id)
}

func (s *stubClient) CreateVideo(ctx context.Context, req openai.VideoRequest) (openai.Video, error) {
	return s.createVideo(ctx, req)
}

func (s *stubClient) GetVideo(ctx context.Context, id string) (openai.Video, error) {
	return s.getVideo(ctx, id)
}

func (s *stubClient) DownloadVideoContent(ctx context.Context, id string) ([]byte, error) {
	return s.downloadVideoContent(ctx, id)
}

func testConfig() Config {
	return Config{
		TextModel:    "gpt-5",
		VideoModel:   "sora-2",
		VideoSeconds: "4",
		VideoSize:    "720x1280",
	}
}

// transientError produces a real transient client error by exhausting the
// retry budget against a failing server.
func transientError(t *testing.T) error {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := openai.NewClient(
		openai.WithAPIKey("test-key"),
		openai.WithBaseURL(server.URL),
		openai.WithMaxRetries(0),
		openai.WithBaseBackoff(time.Millisecond),
	)
	require.NoError(t, err)

	_, err = c.GetResponse(context.Background(), "resp_x")
	require.Error(t, err)
	require.True(t, openai.IsTransient(err))
	return err
}

func TestDispatchText(t *testing.T) {
	t.Run("sends normalized image as data URL", func(t *testing.T) {
		var captured openai.ResponseRequest
		gw := NewOpenAIGateway(&stubClient{
			createResponse: func(_ context.Context, req openai.ResponseRequest) (openai.Response, error) {
				captured = req
				return openai.Response{ID: "resp_1", Status: openai.StatusQueued}, nil
			},
		}, testConfig())

		jobID, status, err := gw.DispatchText(context.Background(), "prompt", encodeGIF(t), TextOptions{})
		require.NoError(t, err)
		assert.Equal(t, "resp_1", jobID)
		assert.Equal(t, StatusQueued, status)

		assert.Equal(t, "gpt-5", captured.Model)
		assert.Equal(t, "image/png", captured.ImageMIME)

		// GIF input must reach the client transcoded to PNG.
		decoded, err := base64.StdEncoding.DecodeString(captured.ImageBase64)
		require.NoError(t, err)
		_, mime, err := NormalizeImage(decoded)
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
	})

	t.Run("text only without image", func(t *testing.T) {
		gw := NewOpenAIGateway(&stubClient{
			createResponse: func(_ context.Context, req openai.ResponseRequest) (openai.Response, error) {
				assert.Empty(t, req.ImageBase64)
				return openai.Response{ID: "resp_2", Status: openai.StatusInProgress}, nil
			},
		}, testConfig())

		jobID, status, err := gw.DispatchText(context.Background(), "prompt", nil, TextOptions{})
		require.NoError(t, err)
		assert.Equal(t, "resp_2", jobID)
		assert.Equal(t, StatusInProgress, status)
	})

	t.Run("model override", func(t *testing.T) {
		gw := NewOpenAIGateway(&stubClient{
			createResponse: func(_ context.Context, req openai.ResponseRequest) (openai.Response, error) {
				assert.Equal(t, "gpt-5-mini", req.Model)
				return openai.Response{ID: "resp_3", Status: openai.StatusQueued}, nil
			},
		}, testConfig())

		_, _, err := gw.DispatchText(context.Background(), "prompt", nil, TextOptions{Model: "gpt-5-mini"})
		require.NoError(t, err)
	})

	t.Run("undecodable image", func(t *testing.T) {
		gw := NewOpenAIGateway(&stubClient{}, testConfig())
		_, _, err := gw.DispatchText(context.Background(), "prompt", []byte("junk"), TextOptions{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("transient client failure maps to ErrUnavailable", func(t *testing.T) {
		cause := transientError(t)
		gw := NewOpenAIGateway(&stubClient{
			createResponse: func(context.Context, openai.ResponseRequest) (openai.Response, error) {
				return openai.Response{}, cause
			},
		}, testConfig())

		_, _, err := gw.DispatchText(context.Background(), "prompt", nil, TextOptions{})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestDispatchVideo(t *testing.T) {
	t.Run("passes configured video parameters", func(t *testing.T) {
		var captured openai.VideoRequest
		gw := NewOpenAIGateway(&stubClient{
			createVideo: func(_ context.Context, req openai.VideoRequest) (openai.Video, error) {
				captured = req
				return openai.Video{ID: "video_1", Status: openai.StatusQueued}, nil
			},
		}, testConfig())

		jobID, status, err := gw.DispatchVideo(context.Background(), "the script", encodePNG(t))
		require.NoError(t, err)
		assert.Equal(t, "video_1", jobID)
		assert.Equal(t, StatusQueued, status)

		assert.Equal(t, "sora-2", captured.Model)
		assert.Equal(t, "the script", captured.Prompt)
		assert.Equal(t, "4", captured.Seconds)
		assert.Equal(t, "720x1280", captured.Size)
		assert.Equal(t, "reference.png", captured.ImageName)
	})

	t.Run("jpeg reference keeps jpeg name", func(t *testing.T) {
		gw := NewOpenAIGateway(&stubClient{
			createVideo: func(_ context.Context, req openai.VideoRequest) (openai.Video, error) {
				assert.Equal(t, "reference.jpg", req.ImageName)
				return openai.Video{ID: "video_2", Status: openai.StatusQueued}, nil
			},
		}, testConfig())

		_, _, err := gw.DispatchVideo(context.Background(), "script", encodeJPEG(t))
		require.NoError(t, err)
	})

	t.Run("oversized image rejected before dispatch", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxImageBytes = 8
		gw := NewOpenAIGateway(&stubClient{}, cfg)

		_, _, err := gw.DispatchVideo(context.Background(), "script", encodePNG(t))
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
	})

	t.Run("server 413 maps to ErrPayloadTooLarge", func(t *testing.T) {
		gw := NewOpenAIGateway(&stubClient{
			createVideo: func(context.Context, openai.VideoRequest) (openai.Video, error) {
				return openai.Video{}, openai.ErrPayloadTooLarge
			},
		}, testConfig())

		_, _, err := gw.DispatchVideo(context.Background(), "script", encodePNG(t))
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
	})
}

func TestPollText(t *testing.T) {
	t.Run("completed result carries text", func(t *testing.T) {
		gw := NewOpenAIGateway(&stubClient{
			getResponse: func(_ context.Context, id string) (openai.Response, error) {
				assert.Equal(t, "resp_1", id)
				return openai.Response{ID: id, Status: openai.StatusCompleted, OutputText: "the persona"}, nil
			},
		}, testConfig())

		res, err := gw.PollText(context.Background(), "resp_1")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, res.Status)
		assert.Equal(t, "the persona", res.Text)
	})

	t.Run("failed result carries error", func(t *testing.T) {
		gw := NewOpenAIGateway(&stubClient{
			getResponse: func(_ context.Context, id string) (openai.Response, error) {
				return openai.Response{ID: id, Status: openai.StatusFailed, Error: "policy"}, nil
			},
		}, testConfig())

		res, err := gw.PollText(context.Background(), "resp_1")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, "policy", res.Error)
	})

	t.Run("transient failure maps to ErrUnavailable", func(t *testing.T) {
		cause := transientError(t)
		gw := NewOpenAIGateway(&stubClient{
			getResponse: func(context.Context, string) (openai.Response, error) {
				return openai.Response{}, cause
			},
		}, testConfig())

		_, err := gw.PollText(context.Background(), "resp_1")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestPollVideo(t *testing.T) {
	gw := NewOpenAIGateway(&stubClient{
		getVideo: func(_ context.Context, id string) (openai.Video, error) {
			return openai.Video{ID: id, Status: openai.StatusInProgress}, nil
		},
	}, testConfig())

	res, err := gw.PollVideo(context.Background(), "video_1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, res.Status)
}

func TestDownloadVideo(t *testing.T) {
	gw := NewOpenAIGateway(&stubClient{
		downloadVideoContent: func(_ context.Context, id string) ([]byte, error) {
			return []byte("mp4-bytes"), nil
		},
	}, testConfig())

	data, err := gw.DownloadVideo(context.Background(), "video_1")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), data)
}
