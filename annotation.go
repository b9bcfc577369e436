package jls

import (
	"fmt"
	"math"
)

// annotationTrack chains one Annotation chunk per recorded annotation for a
// signal. Annotations are sparse and variable-length, so unlike the FSR and
// UTC tracks there is no fixed-size batching: AnnotationDecimateFactor is
// accepted but not used to build a multi-resolution index, since a count- or
// time-windowed annotation density summary has no well-defined statistic the
// way SummaryEntry does for numeric samples.
type annotationTrack struct {
	signal *Signal

	chainHead      int64
	chainTail      int64
	tailPayloadLen uint32
}

func newAnnotationTrack(sig *Signal) *annotationTrack {
	return &annotationTrack{signal: sig}
}

func (t *annotationTrack) add(cw *chunkWriter, a Annotation) error {
	payload := encodeAnnotationPayload(a)
	meta := makeChunkMeta(uint8(t.signal.SignalID), 0, streamAnnotation)
	off, err := cw.append(TagAnnotation, meta, payload, t.chainTail, t.tailPayloadLen)
	if err != nil {
		return err
	}
	if t.chainHead == 0 {
		t.chainHead = off
	}
	t.chainTail = off
	t.tailPayloadLen = uint32(len(payload))
	return nil
}

func encodeAnnotationPayload(a Annotation) []byte {
	buf := make([]byte, 20+len(a.Payload))
	o := 0
	o += putInt64(buf[o:], a.Timestamp)
	o += putUint32(buf[o:], math.Float32bits(a.Y))
	buf[o] = byte(a.AnnotationType)
	o++
	buf[o] = a.GroupID
	o++
	buf[o] = byte(a.StorageType)
	o++
	buf[o] = 0 // reserved
	o++
	o += putUint32(buf[o:], uint32(len(a.Payload)))
	copy(buf[o:], a.Payload)
	return buf
}

func decodeAnnotationPayload(payload []byte) (Annotation, error) {
	if len(payload) < 20 {
		return Annotation{}, fmt.Errorf("jls: malformed annotation chunk payload length %d", len(payload))
	}
	var a Annotation
	ts, o, err := getInt64(payload, 0)
	if err != nil {
		return Annotation{}, err
	}
	a.Timestamp = ts
	ybits, o2, err := getUint32(payload, o)
	if err != nil {
		return Annotation{}, err
	}
	a.Y = math.Float32frombits(ybits)
	o = o2
	a.AnnotationType = AnnotationType(payload[o])
	o++
	a.GroupID = payload[o]
	o++
	a.StorageType = StorageType(payload[o])
	o++
	o++ // reserved
	plen, o3, err := getUint32(payload, o)
	if err != nil {
		return Annotation{}, err
	}
	o = o3
	if o+int(plen) > len(payload) {
		return Annotation{}, fmt.Errorf("jls: annotation payload length %d exceeds chunk", plen)
	}
	a.Payload = append([]byte(nil), payload[o:o+int(plen)]...)
	return a, nil
}
