// Package transport exposes a device.Device over Connect RPC. Payloads are
// protobuf well-known types, so the service needs no generated code and
// speaks binary protobuf, protojson, gRPC, and gRPC-Web.
//
// Session identity and control codes travel in request headers:
//
//	Open    Empty        -> StringValue (session id)
//	Read    UInt64Value  -> BytesValue  (count -> data; empty at end of data)
//	Write   BytesValue   -> UInt64Value (bytes stored; Echodev-Truncated response header)
//	Control UInt64Value  -> UInt64Value (Echodev-Control-Code header selects the code)
//	Close   Empty        -> Empty
package transport

// ServiceName is the fully-qualified name of the device service.
const ServiceName = "echodev.v1.DeviceService"

// Procedure paths of the device service.
const (
	OpenProcedure    = "/" + ServiceName + "/Open"
	ReadProcedure    = "/" + ServiceName + "/Read"
	WriteProcedure   = "/" + ServiceName + "/Write"
	ControlProcedure = "/" + ServiceName + "/Control"
	CloseProcedure   = "/" + ServiceName + "/Close"
)

// Header names carried alongside the messages.
const (
	SessionHeader     = "Echodev-Session"
	NonblockingHeader = "Echodev-Nonblocking"
	CodeHeader        = "Echodev-Control-Code"
	TruncatedHeader   = "Echodev-Truncated"
	ErrorKindHeader   = "Echodev-Error"
)
