package wire

import "github.com/kongr45gpen/gowing/nodedef"

// ResponseKind identifies which variant of Response is populated.
type ResponseKind int

const (
	// RespNodeData carries a value update for the current node on a channel.
	RespNodeData ResponseKind = iota
	// RespNodeDef carries a fully parsed node definition.
	RespNodeDef
	// RespRequestEnd marks the end of a logical request/response exchange.
	RespRequestEnd
)

// Response is the sum type produced by one pass of the dispatch loop: a
// value update, a node definition, or an end-of-request marker.
type Response struct {
	Kind    ResponseKind
	Channel int8
	NodeID  int32
	Value   NodeValue
	Def     nodedef.Def
}

// NewNodeData builds a RespNodeData response.
func NewNodeData(channel int8, nodeID int32, value NodeValue) Response {
	return Response{Kind: RespNodeData, Channel: channel, NodeID: nodeID, Value: value}
}

// NewNodeDef builds a RespNodeDef response.
func NewNodeDef(def nodedef.Def) Response {
	return Response{Kind: RespNodeDef, Def: def}
}

// RequestEndResponse builds a RespRequestEnd response.
func RequestEndResponse() Response {
	return Response{Kind: RespRequestEnd}
}
