// Copyright 2026 The GridGuard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import "log/slog"

// Common attribute keys for consistent logging across the application

// Request attributes
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64("duration_ms", ms)
}

// Identity attributes
func ActorID(id string) slog.Attr {
	return slog.String("actor_id", id)
}

func Username(name string) slog.Attr {
	return slog.String("username", name)
}

func GroupID(id string) slog.Attr {
	return slog.String("group_id", id)
}

// Authorization attributes
func GrantID(id string) slog.Attr {
	return slog.String("grant_id", id)
}

func Permission(p string) slog.Attr {
	return slog.String("permission", p)
}

func ResourceType(t string) slog.Attr {
	return slog.String("resource_type", t)
}

func ResourceID(id string) slog.Attr {
	return slog.String("resource_id", id)
}

func Decision(allowed bool) slog.Attr {
	if allowed {
		return slog.String("decision", "allow")
	}
	return slog.String("decision", "deny")
}

func Field(field string) slog.Attr {
	return slog.String("field", field)
}

// Error attributes
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Database attributes
func RowsAffected(rows int64) slog.Attr {
	return slog.Int64("rows_affected", rows)
}

// Component attributes
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Operation(op string) slog.Attr {
	return slog.String("operation", op)
}

// String creates a generic string attribute
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}
