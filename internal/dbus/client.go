package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client is a thin wrapper over the display-sync bus interface, used by the
// CLI to talk to a running daemon.
type Client struct {
	conn    *dbus.Conn
	busName string
}

// NewClient connects to the session bus. busName defaults to DefaultBusName.
func NewClient(busName string) (*Client, error) {
	if busName == "" {
		busName = DefaultBusName
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	return &Client{
		conn:    conn,
		busName: busName,
	}, nil
}

// object returns the remote display-sync object.
func (c *Client) object() dbus.BusObject {
	return c.conn.Object(c.busName, DBusPath)
}

// Display sends a display request to the daemon.
func (c *Client) Display(metaJSON, messageID, dialogRequestID, serviceID string) error {
	call := c.object().Call(DBusInterface+".Display", 0, metaJSON, messageID, dialogRequestID, serviceID)
	if call.Err != nil {
		return fmt.Errorf("Display failed: %w", call.Err)
	}
	return nil
}

// Play sends a combined playback-plus-display request to the daemon.
func (c *Client) Play(path, metaJSON, messageID, dialogRequestID, serviceID string) error {
	call := c.object().Call(DBusInterface+".Play", 0, path, metaJSON, messageID, dialogRequestID, serviceID)
	if call.Err != nil {
		return fmt.Errorf("Play failed: %w", call.Err)
	}
	return nil
}

// ClearDisplay asks the daemon to tear down the bus-facing surface.
func (c *Client) ClearDisplay() error {
	call := c.object().Call(DBusInterface+".ClearDisplay", 0)
	if call.Err != nil {
		return fmt.Errorf("ClearDisplay failed: %w", call.Err)
	}
	return nil
}

// Status reports the template the daemon is currently synchronizing.
func (c *Client) Status() (templateID, templateType string, rendering bool, err error) {
	call := c.object().Call(DBusInterface+".Status", 0)
	if call.Err != nil {
		return "", "", false, fmt.Errorf("Status failed: %w", call.Err)
	}
	if err := call.Store(&templateID, &templateType, &rendering); err != nil {
		return "", "", false, fmt.Errorf("Status reply malformed: %w", err)
	}
	return templateID, templateType, rendering, nil
}
