// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for the spans teamarr emits. HTTP keys follow the otel
// semantic names; the rest live under teamarr's own namespaces.
const (
	// Upstream HTTP exchanges
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Stream matching
	MatchGroupKey  = "match.group"
	MatchLeagueKey = "match.league"
	MatchTierKey   = "match.tier"
	MatchScoreKey  = "match.score"

	// Sports providers
	ProviderNameKey   = "provider.name"
	ProviderLeagueKey = "provider.league"
	ProviderDateKey   = "provider.date"

	// Managed channels
	ChannelIDKey     = "channel.id"
	ChannelUUIDKey   = "channel.uuid"
	ChannelNumberKey = "channel.number"
	ChannelGroupKey  = "channel.group"

	// Generation runs
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Failure labelling
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes labels one HTTP exchange.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// MatchAttributes describes one stream-to-event match. Empty fields are
// left off so exception and partial contexts stay compact; the score is
// always carried.
func MatchAttributes(group, league, tier string, score float64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if group != "" {
		attrs = append(attrs, attribute.String(MatchGroupKey, group))
	}
	if league != "" {
		attrs = append(attrs, attribute.String(MatchLeagueKey, league))
	}
	if tier != "" {
		attrs = append(attrs, attribute.String(MatchTierKey, tier))
	}
	attrs = append(attrs, attribute.Float64(MatchScoreKey, score))
	return attrs
}

// ProviderAttributes labels a provider fetch; empty fields are omitted.
func ProviderAttributes(provider, league, date string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if provider != "" {
		attrs = append(attrs, attribute.String(ProviderNameKey, provider))
	}
	if league != "" {
		attrs = append(attrs, attribute.String(ProviderLeagueKey, league))
	}
	if date != "" {
		attrs = append(attrs, attribute.String(ProviderDateKey, date))
	}
	return attrs
}

// ChannelAttributes identifies one managed channel.
func ChannelAttributes(id int, uuid, group string, number float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ChannelIDKey, id),
		attribute.String(ChannelUUIDKey, uuid),
		attribute.String(ChannelGroupKey, group),
		attribute.Float64(ChannelNumberKey, number),
	}
}

// JobAttributes summarises a finished job on its root span.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes flags a span failed under a stable label. The error
// itself travels via span.RecordError; only the label is indexed.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
