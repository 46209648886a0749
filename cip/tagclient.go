package cip

import (
	"context"
	"fmt"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// TagClient offers tag-oriented convenience methods over a Session,
// mirroring tonylturner-cipdip's ReadTagByName/WriteTagByName but
// returning this module's Response/error types.
type TagClient struct {
	session *Session
}

// NewTagClient wraps an already-open Session.
func NewTagClient(session *Session) *TagClient {
	return &TagClient{session: session}
}

// ReadTag reads elementCount elements of the named tag.
func (c *TagClient) ReadTag(ctx context.Context, tagName string, elementCount uint16) (CIPDataType, []byte, error) {
	req := Request{
		Service: ServiceReadTag,
		Path:    BuildSymbolicPath(tagName),
		Payload: BuildReadTagPayload(elementCount),
	}
	resp, err := c.session.Invoke(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	return ParseReadTagResponse(resp)
}

// WriteTag writes data as elementCount elements of dataType to the named
// tag.
func (c *TagClient) WriteTag(ctx context.Context, tagName string, dataType CIPDataType, elementCount uint16, data []byte) error {
	req := Request{
		Service: ServiceWriteTag,
		Path:    BuildSymbolicPath(tagName),
		Payload: BuildWriteTagPayload(dataType, elementCount, data),
	}
	resp, err := c.session.Invoke(ctx, req)
	if err != nil {
		return err
	}
	if resp.GeneralStatus != GeneralStatusSuccess {
		return errWriteTagFailed(resp.GeneralStatus)
	}
	return nil
}

// ReadTags batches multiple tag reads into one Multiple Service Packet
// (spec.md §4.3 "multi-service packet batching"), falling back to
// per-tag Invoke calls transparently to the caller either way.
// elementCounts is parallel to tagNames, so an array tag (spec.md §6
// "CIP: ... ELEMENTS") can be read alongside scalar tags in the same
// batch.
func (c *TagClient) ReadTags(ctx context.Context, tagNames []string, elementCounts []uint16) ([][]byte, error) {
	if len(elementCounts) != len(tagNames) {
		return nil, protoerr.New(protoerr.BadValue, "elementCounts must be parallel to tagNames")
	}
	requests := make([][]byte, len(tagNames))
	for i, name := range tagNames {
		requests[i] = EncodeRequest(Request{
			Service: ServiceReadTag,
			Path:    BuildSymbolicPath(name),
			Payload: BuildReadTagPayload(elementCounts[i]),
		})
	}
	multiReq, err := EncodeMultiServiceRequest(requests)
	if err != nil {
		// The batch does not fit one envelope: read each tag on its own.
		out := make([][]byte, len(tagNames))
		for i, name := range tagNames {
			_, data, readErr := c.ReadTag(ctx, name, elementCounts[i])
			if readErr != nil {
				return nil, readErr
			}
			out[i] = data
		}
		return out, nil
	}
	resp, err := c.session.Invoke(ctx, multiReq)
	if err != nil {
		return nil, err
	}
	replies, err := DecodeMultiServiceResponse(resp)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(replies))
	for i, r := range replies {
		_, data, err := ParseReadTagResponse(r)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

func errWriteTagFailed(status GeneralStatus) error {
	return protoerr.New(protoerr.BadValue, fmt.Sprintf("write tag returned general status 0x%02X", byte(status)))
}
