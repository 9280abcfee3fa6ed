// Recoverd
// Copyright (c) 2025 The Recoverd Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Recoverd.
//
// Recoverd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Recoverd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Recoverd.  If not, see <http://www.gnu.org/licenses/>.

package config

const DefaultAPIPort = 7580

type Service struct {
	DeviceID       string   `toml:"device_id,omitempty"`
	APIListen      string   `toml:"api_listen,omitempty"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`
	AllowIPs       []string `toml:"allow_ips,omitempty"`
	APIPort        int      `toml:"api_port,omitempty"`
}

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.APIPort == 0 {
		return DefaultAPIPort
	}
	return c.vals.Service.APIPort
}

// APIListen returns the listen address for the API server. If unset, it
// falls back to all interfaces on the configured port.
func (c *Instance) APIListen() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Service.APIListen != "" {
		return c.vals.Service.APIListen
	}
	return ""
}

func (c *Instance) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Service.DeviceID
}

func (c *Instance) AllowedOrigins() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	origins := make([]string, len(c.vals.Service.AllowedOrigins))
	copy(origins, c.vals.Service.AllowedOrigins)
	return origins
}

// AllowIPs is the client allowlist, as single addresses or CIDR
// ranges. Empty means no filtering.
func (c *Instance) AllowIPs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ips := make([]string, len(c.vals.Service.AllowIPs))
	copy(ips, c.vals.Service.AllowIPs)
	return ips
}
