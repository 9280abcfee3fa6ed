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

// Package middleware holds the HTTP and websocket guards in front of
// the API: an IP allowlist and per-client rate limiting. A recovery
// daemon hands out raw device access, so the default posture is to
// only trust what the operator listed.
package middleware

import (
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ParseRemoteIP extracts the IP from an IP:port RemoteAddr string.
func ParseRemoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

// IsLoopbackAddr reports whether a RemoteAddr string is a loopback
// address.
func IsLoopbackAddr(remoteAddr string) bool {
	ip := ParseRemoteIP(remoteAddr)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// IPFilter is an allowlist of client addresses, matched as single IPs
// or CIDR ranges. An empty allowlist admits everyone.
type IPFilter struct {
	entries []string
	nets    []*net.IPNet
	addrs   []net.IP
}

// NewIPFilter parses the configured allowlist. Unparseable entries are
// logged and skipped rather than failing startup.
func NewIPFilter(allowed []string) *IPFilter {
	filter := &IPFilter{entries: allowed}

	for _, entry := range allowed {
		// tolerate entries pasted with a port attached
		if host, _, err := net.SplitHostPort(entry); err == nil {
			entry = host
		}

		if _, network, err := net.ParseCIDR(entry); err == nil {
			filter.nets = append(filter.nets, network)
			continue
		}

		if ip := net.ParseIP(entry); ip != nil {
			filter.addrs = append(filter.addrs, ip)
			continue
		}

		log.Warn().Str("entry", entry).Msg("invalid IP or CIDR in allow_ips, skipping")
	}

	return filter
}

// IsAllowed checks a RemoteAddr string against the allowlist.
func (f *IPFilter) IsAllowed(remoteAddr string) bool {
	if len(f.entries) == 0 {
		return true
	}

	ip := ParseRemoteIP(remoteAddr)
	if ip == nil {
		log.Warn().Str("addr", remoteAddr).Msg("failed to parse client address")
		return false
	}

	for _, allowed := range f.addrs {
		if ip.Equal(allowed) {
			return true
		}
	}
	for _, network := range f.nets {
		if network.Contains(ip) {
			return true
		}
	}

	return false
}

// HTTPIPFilterMiddleware rejects requests from addresses outside the
// allowlist before they reach the router, websocket upgrades included.
func HTTPIPFilterMiddleware(filter *IPFilter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !filter.IsAllowed(r.RemoteAddr) {
				log.Debug().
					Str("addr", r.RemoteAddr).
					Str("path", r.URL.Path).
					Msg("request from blocked address")

				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
