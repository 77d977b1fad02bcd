package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
)

// Handler dispatches JSON-RPC 2.0 POST bodies to a Server's method set:
// linea_sendBundle, linea_cancelBundle, and plugins_reloadPluginConfig.
// It replaces the full net/rpc server stack the host node normally
// provides, since that transport machinery is outside this core's scope.
type Handler struct {
	server *Server
}

func NewHandler(s *Server) *Handler {
	return &Handler{server: s}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, "malformed linea_sendBundle json param")
		return
	}

	result, err := h.dispatch(req)
	if err != nil {
		writeError(w, req.ID, err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

func (h *Handler) dispatch(req jsonrpcRequest) (interface{}, error) {
	switch req.Method {
	case "linea_sendBundle":
		var params SendBundleParams
		if err := decodeSingleParam(req.Params, &params); err != nil {
			return nil, err
		}
		return h.server.SendBundle(params)

	case "linea_cancelBundle":
		var params CancelBundleParams
		if err := decodeSingleParam(req.Params, &params); err != nil {
			return nil, err
		}
		return h.server.CancelBundle(params)

	case "plugins_reloadPluginConfig":
		var pluginName string
		if len(req.Params) > 0 {
			if s, ok := req.Params[0].(string); ok {
				pluginName = s
			}
		}
		return h.server.ReloadPluginConfig(pluginName)

	default:
		return nil, unknownMethodError(req.Method)
	}
}

func decodeSingleParam(params []interface{}, out interface{}) error {
	if len(params) == 0 {
		return errMissingParam
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: result}); err != nil {
		log.Error("failed to encode json-rpc response", "err", err)
	}
}

func writeError(w http.ResponseWriter, id interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	resp := jsonrpcResponse{JSONRPC: "2.0", ID: id, Error: &jsonrpcError{Code: -32000, Message: message}}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("failed to encode json-rpc error response", "err", err)
	}
}
