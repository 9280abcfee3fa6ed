package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/RecoverdProject/recoverd-core/pkg/api/models"
	"github.com/RecoverdProject/recoverd-core/pkg/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
)

const APIPath = "/api/v1"

// LocalClient sends a single method with params to the local running
// service, waits for the matching response until timeout then
// disconnects.
func LocalClient(
	ctx context.Context,
	cfg *config.Instance,
	method string,
	params string,
) (string, error) {
	wsURL := url.URL{
		Scheme: "ws",
		Host:   "localhost:" + strconv.Itoa(cfg.APIPort()),
		Path:   APIPath,
	}

	id, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("error generating request id: %w", err)
	}

	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
	}

	switch {
	case len(params) == 0:
		req.Params = nil
	case json.Valid([]byte(params)):
		req.Params = []byte(params)
	default:
		return "", ErrInvalidParams
	}

	c, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("error connecting to service: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing websocket")
		}
	}()

	done := make(chan struct{})
	var resp *models.ResponseObject

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				return
			}

			var m models.ResponseObject
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" || m.ID != id {
				continue
			}

			resp = &m
			return
		}
	}()

	if err := c.WriteJSON(req); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	timer := time.NewTimer(config.APIRequestTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing websocket")
		}
		return "", ErrRequestTimeout
	case <-ctx.Done():
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing websocket")
		}
		return "", ErrRequestCancelled
	}

	if resp == nil {
		return "", ErrRequestTimeout
	}

	if resp.Error != nil {
		return "", errors.New(resp.Error.Message)
	}

	b, err := json.Marshal(resp.Result)
	if err != nil {
		return "", fmt.Errorf("error marshalling result: %w", err)
	}

	return string(b), nil
}

// WaitNotification blocks until the service emits a notification with
// the given method, or the timeout elapses. A timeout of 0 uses the
// default request timeout; negative waits forever.
func WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	cfg *config.Instance,
	method string,
) (string, error) {
	wsURL := url.URL{
		Scheme: "ws",
		Host:   "localhost:" + strconv.Itoa(cfg.APIPort()),
		Path:   APIPath,
	}

	c, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("error connecting to service: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing websocket")
		}
	}()

	done := make(chan struct{})
	var notif *models.RequestObject

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				return
			}

			var m models.RequestObject
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			// notifications carry no id
			if m.JSONRPC != "2.0" || m.ID != nil || m.Method != method {
				continue
			}

			notif = &m
			return
		}
	}()

	var timerChan <-chan time.Time
	if timeout == 0 {
		timer := time.NewTimer(config.APIRequestTimeout)
		defer timer.Stop()
		timerChan = timer.C
	} else if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerChan = timer.C
	}
	// a nil chan never receives

	select {
	case <-done:
	case <-timerChan:
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing websocket")
		}
		return "", ErrRequestTimeout
	case <-ctx.Done():
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing websocket")
		}
		return "", ErrRequestCancelled
	}

	if notif == nil {
		return "", ErrRequestTimeout
	}

	b, err := json.Marshal(notif.Params)
	if err != nil {
		return "", fmt.Errorf("error marshalling params: %w", err)
	}

	return string(b), nil
}
