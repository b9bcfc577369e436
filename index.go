package jls

import "fmt"

// encodeIndexPayload serializes the end-of-file Index chunk for one Data or
// Summary chain: a flat, already-sorted-by-FirstID array of indexRecord, so
// a reader can binary search it directly instead of walking the chain.
func encodeIndexPayload(entries []indexRecord) []byte {
	buf := make([]byte, 4+24*len(entries))
	o := putUint32(buf, uint32(len(entries)))
	for _, e := range entries {
		o += putInt64(buf[o:], e.FirstID)
		o += putUint32(buf[o:], e.Count)
		o += putUint64(buf[o:], e.Offset)
		o += putUint32(buf[o:], e.PayloadLength)
	}
	return buf
}

func decodeIndexPayload(payload []byte) ([]indexRecord, error) {
	n, o, err := getUint32(payload, 0)
	if err != nil {
		return nil, err
	}
	out := make([]indexRecord, n)
	for i := range out {
		var id int64
		var count uint32
		var off uint64
		var plen uint32
		id, o, err = getInt64(payload, o)
		if err != nil {
			return nil, err
		}
		count, o, err = getUint32(payload, o)
		if err != nil {
			return nil, err
		}
		off, o, err = getUint64(payload, o)
		if err != nil {
			return nil, err
		}
		plen, o, err = getUint32(payload, o)
		if err != nil {
			return nil, err
		}
		out[i] = indexRecord{FirstID: id, Count: count, Offset: off, PayloadLength: plen}
	}
	return out, nil
}

// signalIndex is the root index's per-signal summary: the embedded
// definition (so Open need not chain-walk SignalDef), the Data chain's head
// and Index chunk offset, one (head, indexOffset) pair per summary level,
// and the UTC/Annotation chain heads (walked in full on read; they are not
// large enough in practice to need a binary-searchable index).
type signalIndex struct {
	signal Signal

	dataChainHead  int64
	dataIndexOff   int64
	levelHeads     []int64
	levelIndexOffs []int64

	utcChainHead  int64
	annChainHead  int64
}

// writeRootIndex flushes one Index chunk per FSR Data/Summary chain, then
// writes and returns the offset of the root Index chunk tying everything
// together: embedded Source/Signal definitions, per-signal chain
// descriptors, and the UserData chain table.
func (w *Writer) writeRootIndex() (int64, error) {
	var signalIdxs []signalIndex
	for _, id := range w.signalOrder {
		st := w.signals.get(id)
		if st == nil {
			continue
		}
		si := signalIndex{signal: st.signal, dataChainHead: st.fsr.dataChainHead, utcChainHead: st.utc.chainHead, annChainHead: st.ann.chainHead}
		if len(st.fsr.dataIndexEntries) > 0 {
			off, err := w.cw.append(TagIndex, makeChunkMeta(uint8(id), 0, streamFSR), encodeIndexPayload(st.fsr.dataIndexEntries), 0, 0)
			if err != nil {
				return 0, err
			}
			si.dataIndexOff = off
		}
		for _, lvl := range st.fsr.levels {
			si.levelHeads = append(si.levelHeads, lvl.chainHead)
			if len(lvl.indexEntries) > 0 {
				off, err := w.cw.append(TagIndex, makeChunkMeta(uint8(id), lvl.level, streamFSR), encodeIndexPayload(lvl.indexEntries), 0, 0)
				if err != nil {
					return 0, err
				}
				si.levelIndexOffs = append(si.levelIndexOffs, off)
			} else {
				si.levelIndexOffs = append(si.levelIndexOffs, 0)
			}
		}
		signalIdxs = append(signalIdxs, si)
	}

	payload := encodeRootIndex(w.sourceOrder, w.sources, w.sourceChainHd, w.signalChainHd, signalIdxs, w.userData)
	off, err := w.cw.append(TagIndex, 0, payload, 0, 0)
	if err != nil {
		return 0, err
	}
	return off, nil
}

func encodeRootIndex(sourceOrder []uint16, sources slicemap[Source], sourceChainHd, signalChainHd int64, signals []signalIndex, userData map[uint16]*userDataChain) []byte {
	var body []byte
	body = appendUint64(body, uint64(sourceChainHd))
	body = appendUint64(body, uint64(signalChainHd))

	body = appendUint16(body, uint16(len(sourceOrder)))
	for _, id := range sourceOrder {
		s := sources.get(id)
		if s == nil {
			continue
		}
		enc := encodeSourceDef(*s)
		body = appendUint32(body, uint32(len(enc)))
		body = append(body, enc...)
	}

	body = appendUint16(body, uint16(len(signals)))
	for _, si := range signals {
		enc := encodeSignalDef(si.signal)
		body = appendUint32(body, uint32(len(enc)))
		body = append(body, enc...)

		body = appendUint64(body, uint64(si.dataChainHead))
		body = appendUint64(body, uint64(si.dataIndexOff))
		body = appendUint64(body, uint64(si.utcChainHead))
		body = appendUint64(body, uint64(si.annChainHead))

		body = appendUint8(body, uint8(len(si.levelHeads)))
		for i, head := range si.levelHeads {
			body = appendUint64(body, uint64(head))
			body = appendUint64(body, uint64(si.levelIndexOffs[i]))
		}
	}

	body = appendUint32(body, uint32(len(userData)))
	for meta, chain := range userData {
		body = appendUint16(body, meta)
		body = appendUint64(body, uint64(chain.head))
	}
	return body
}

func decodeRootIndex(payload []byte) (sourceChainHd, signalChainHd int64, sources []Source, signals []signalIndex, userData map[uint16]int64, err error) {
	o := 0
	var u64 uint64
	u64, o, err = getUint64(payload, o)
	if err != nil {
		return
	}
	sourceChainHd = int64(u64)
	u64, o, err = getUint64(payload, o)
	if err != nil {
		return
	}
	signalChainHd = int64(u64)

	var nSrc uint16
	nSrc, o, err = getUint16(payload, o)
	if err != nil {
		return
	}
	for i := 0; i < int(nSrc); i++ {
		var ln uint32
		ln, o, err = getUint32(payload, o)
		if err != nil {
			return
		}
		if o+int(ln) > len(payload) {
			err = fmt.Errorf("jls: root index source record truncated")
			return
		}
		var s Source
		s, err = decodeSourceDef(payload[o : o+int(ln)])
		if err != nil {
			return
		}
		o += int(ln)
		sources = append(sources, s)
	}

	var nSig uint16
	nSig, o, err = getUint16(payload, o)
	if err != nil {
		return
	}
	for i := 0; i < int(nSig); i++ {
		var ln uint32
		ln, o, err = getUint32(payload, o)
		if err != nil {
			return
		}
		if o+int(ln) > len(payload) {
			err = fmt.Errorf("jls: root index signal record truncated")
			return
		}
		var sig Signal
		sig, err = decodeSignalDef(payload[o : o+int(ln)])
		if err != nil {
			return
		}
		o += int(ln)

		var si signalIndex
		si.signal = sig
		u64, o, err = getUint64(payload, o)
		if err != nil {
			return
		}
		si.dataChainHead = int64(u64)
		u64, o, err = getUint64(payload, o)
		if err != nil {
			return
		}
		si.dataIndexOff = int64(u64)
		u64, o, err = getUint64(payload, o)
		if err != nil {
			return
		}
		si.utcChainHead = int64(u64)
		u64, o, err = getUint64(payload, o)
		if err != nil {
			return
		}
		si.annChainHead = int64(u64)

		var nLevels uint8
		if o >= len(payload) {
			err = fmt.Errorf("jls: root index truncated before level count")
			return
		}
		nLevels = payload[o]
		o++
		for l := 0; l < int(nLevels); l++ {
			u64, o, err = getUint64(payload, o)
			if err != nil {
				return
			}
			si.levelHeads = append(si.levelHeads, int64(u64))
			u64, o, err = getUint64(payload, o)
			if err != nil {
				return
			}
			si.levelIndexOffs = append(si.levelIndexOffs, int64(u64))
		}
		signals = append(signals, si)
	}

	var nUD uint32
	nUD, o, err = getUint32(payload, o)
	if err != nil {
		return
	}
	userData = make(map[uint16]int64, nUD)
	for i := 0; i < int(nUD); i++ {
		var meta uint16
		meta, o, err = getUint16(payload, o)
		if err != nil {
			return
		}
		u64, o, err = getUint64(payload, o)
		if err != nil {
			return
		}
		userData[meta] = int64(u64)
	}
	return
}

func appendUint8(b []byte, v uint8) []byte   { return append(b, v) }
func appendUint16(b []byte, v uint16) []byte { tmp := make([]byte, 2); putUint16(tmp, v); return append(b, tmp...) }
func appendUint32(b []byte, v uint32) []byte { tmp := make([]byte, 4); putUint32(tmp, v); return append(b, tmp...) }
func appendUint64(b []byte, v uint64) []byte { tmp := make([]byte, 8); putUint64(tmp, v); return append(b, tmp...) }
