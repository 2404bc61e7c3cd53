package webserver

import (
	"io"
	"net/http"
	"strings"

	"cam2web/internal/jsonreader"
	"cam2web/internal/propsurface"
	"cam2web/internal/xerror"
)

// InformationHandler serves a read-only snapshot of a property surface,
// spec.md §4.6's Information handler: GET only, optionally filtered by the
// comma-separated `vars` query parameter, wrapped in the
// {"status":"OK","config":{...}} envelope.
type InformationHandler struct {
	Surface propsurface.Surface
}

// Handle implements Handler.
func (h *InformationHandler) Handle(resp *Response, req *http.Request, group UserGroup) {
	if req.Method != http.MethodGet {
		resp.Header().Set("Allow", "GET")
		resp.SendError(http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeConfigEnvelope(resp, req, h.Surface)
}

// writeConfigEnvelope serves {"status":"OK","config":{...}}, restricted to
// the comma-separated `vars` query parameter's names when present.
func writeConfigEnvelope(resp *Response, req *http.Request, surface propsurface.Surface) {
	values := surface.EnumerateAll()
	keys := selectedKeys(req, values)

	configJSON := jsonreader.Serialize(keys, values)
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusOK)
	resp.Send([]byte(`{"status":"OK","config":` + string(configJSON) + `}`))
}

func selectedKeys(req *http.Request, values map[string]string) []string {
	vars := req.URL.Query().Get("vars")
	if vars == "" {
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		return keys
	}
	names := strings.Split(vars, ",")
	keys := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if _, ok := values[name]; ok {
			keys = append(keys, name)
		}
	}
	return keys
}

// ConfiguratorHandler implements spec.md §4.6's Configurator handler: GET
// behaves like Information, POST applies a flat JSON body of name/value
// pairs to the property surface via Set.
type ConfiguratorHandler struct {
	Surface propsurface.Surface
}

// Handle implements Handler.
func (h *ConfiguratorHandler) Handle(resp *Response, req *http.Request, group UserGroup) {
	switch req.Method {
	case http.MethodGet:
		writeConfigEnvelope(resp, req, h.Surface)
	case http.MethodPost:
		h.handlePost(resp, req, group)
	default:
		resp.Header().Set("Allow", "GET, POST")
		resp.SendError(http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ConfiguratorHandler) handlePost(resp *Response, req *http.Request, group UserGroup) {
	if group < User {
		resp.SendError(http.StatusForbidden, "insufficient privileges")
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil {
		resp.SendError(http.StatusBadRequest, "failed reading request body")
		return
	}

	obj, err := jsonreader.ParseFlatObject(body)
	if err != nil {
		writeConfigStatus(resp, "Invalid JSON object", "")
		return
	}

	for _, key := range obj.Keys() {
		value, _ := obj.Get(key)
		if err := h.Surface.Set(key, value); err != nil {
			writeConfigStatus(resp, errorKind(err), key)
			return
		}
	}

	writeConfigStatus(resp, "OK", "")
}

// errorKind maps a property surface Set failure onto spec.md §4.6's
// four-value error-kind vocabulary.
func errorKind(err error) string {
	code, _ := xerror.As(err)
	switch code {
	case xerror.UnknownProperty:
		return "Unknown property"
	case xerror.InvalidPropertyValue:
		return "Invalid property value"
	default:
		return "Failed setting property"
	}
}

func writeConfigStatus(resp *Response, status, property string) {
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusOK)
	keys := []string{"status"}
	values := map[string]string{"status": status}
	if property != "" {
		keys = append(keys, "property")
		values["property"] = property
	}
	resp.Send(jsonreader.Serialize(keys, values))
}

// PropertiesHandler serves per-property metadata (min/max/default),
// SPEC_FULL.md §3.3's addition on top of spec.md §4.6's plain handlers.
type PropertiesHandler struct {
	Surface *propsurface.MapSurface
}

// Handle implements Handler.
func (h *PropertiesHandler) Handle(resp *Response, req *http.Request, group UserGroup) {
	names := h.Surface.Names()
	metaKeys := make([]string, 0, len(names))
	metaValues := make(map[string]string, len(names))

	for _, name := range names {
		entries := map[string]string{}
		for _, sub := range []string{"min", "max", "default"} {
			if v, err := h.Surface.Get(name + ":" + sub); err == nil {
				entries[sub] = v
			} else if code, ok := xerror.As(err); ok && code != xerror.UnsupportedProperty {
				// An unexpected failure (not merely "no metadata for this
				// subproperty") still omits the key, matching the
				// "silently omitting any unsupported metadata key" rule.
				continue
			}
		}
		if len(entries) == 0 {
			continue
		}
		subKeys := make([]string, 0, len(entries))
		for k := range entries {
			subKeys = append(subKeys, k)
		}
		metaKeys = append(metaKeys, name)
		metaValues[name] = string(jsonreader.Serialize(subKeys, entries))
	}

	propertiesJSON := string(jsonreader.Serialize(metaKeys, metaValues))
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusOK)
	resp.Send([]byte(`{"status":"OK","properties":` + propertiesJSON + `}`))
}

// VersionHandler serves the `{product, version, platform}` document spec.md
// §6 names for the anyone-accessible /version endpoint.
type VersionHandler struct {
	Product  string
	Version  string
	Platform string
}

// Handle implements Handler.
func (h *VersionHandler) Handle(resp *Response, req *http.Request, group UserGroup) {
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusOK)
	resp.Send(jsonreader.Serialize([]string{"product", "version", "platform"}, map[string]string{
		"product":  h.Product,
		"version":  h.Version,
		"platform": h.Platform,
	}))
}
