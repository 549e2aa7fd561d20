package client

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// startHeartbeat keeps the instance alive. A 404 means the registry has
// forgotten this instance (restart or expiry), so it registers again.
func (c *RegistryClient) startHeartbeat() {
	c.mu.RLock()
	interval := c.heartbeatInterval
	c.mu.RUnlock()

	if interval == 0 {
		interval = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.stopCancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.sendHeartbeat(ctx); err != nil {
					if errors.Is(err, ErrInstanceNotFound) {
						c.logger.Warn("instance not found, attempting re-registration")
						if reErr := c.reregister(ctx); reErr != nil {
							c.logger.Error("re-registration failed", "error", reErr)
						}
					} else {
						c.logger.Warn("heartbeat failed", "error", err)
					}
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

func (c *RegistryClient) sendHeartbeat(ctx context.Context) error {
	c.mu.RLock()
	instanceID := c.instanceID
	c.mu.RUnlock()

	if instanceID == "" {
		return errors.New("not registered")
	}

	status, body, err := c.post(ctx, "/internal/registry/heartbeat", map[string]string{
		"instance_id": instanceID,
	})
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrInstanceNotFound
	default:
		return &StatusError{Op: "heartbeat", StatusCode: status, Body: string(body)}
	}
}
