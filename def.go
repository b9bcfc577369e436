package jls

// encodeSourceDef/decodeSourceDef and encodeSignalDef/decodeSignalDef are
// shared by the SourceDef/SignalDef chunk payloads written as each source or
// signal is defined, and by the root index chunk written at Close, which
// re-embeds every definition so Open does not need to chain-walk them on the
// fast path.

func encodeSourceDef(s Source) []byte {
	size := 2 + nulStringLen(s.Name) + nulStringLen(s.Vendor) + nulStringLen(s.Model) +
		nulStringLen(s.Version) + nulStringLen(s.SerialNumber)
	buf := make([]byte, size)
	o := 0
	o += putUint16(buf[o:], s.SourceID)
	o += putNulString(buf[o:], s.Name)
	o += putNulString(buf[o:], s.Vendor)
	o += putNulString(buf[o:], s.Model)
	o += putNulString(buf[o:], s.Version)
	o += putNulString(buf[o:], s.SerialNumber)
	return buf
}

func decodeSourceDef(payload []byte) (Source, error) {
	var s Source
	id, o, err := getUint16(payload, 0)
	if err != nil {
		return s, err
	}
	s.SourceID = id
	s.Name, o, err = getNulString(payload, o)
	if err != nil {
		return s, err
	}
	s.Vendor, o, err = getNulString(payload, o)
	if err != nil {
		return s, err
	}
	s.Model, o, err = getNulString(payload, o)
	if err != nil {
		return s, err
	}
	s.Version, o, err = getNulString(payload, o)
	if err != nil {
		return s, err
	}
	s.SerialNumber, _, err = getNulString(payload, o)
	if err != nil {
		return s, err
	}
	return s, nil
}

func encodeSignalDef(s Signal) []byte {
	size := 2 + 2 + 1 + 3 + 8 + 4*6 + 8 + 1 + 3 + nulStringLen(string(s.Compression)) +
		nulStringLen(s.Name) + nulStringLen(s.Units)
	buf := make([]byte, size)
	o := 0
	o += putUint16(buf[o:], s.SignalID)
	o += putUint16(buf[o:], s.SourceID)
	buf[o] = byte(s.Kind)
	o++
	buf[o] = byte(s.DataType.Base)
	o++
	buf[o] = s.DataType.BitWidth
	o++
	buf[o] = s.DataType.Q
	o++
	o += putFloat64(buf[o:], s.SampleRate)
	o += putUint32(buf[o:], s.SamplesPerData)
	o += putUint32(buf[o:], s.SampleDecimateFactor)
	o += putUint32(buf[o:], s.EntriesPerSummary)
	o += putUint32(buf[o:], s.SummaryDecimateFactor)
	o += putUint32(buf[o:], s.AnnotationDecimateFactor)
	o += putUint32(buf[o:], s.UTCDecimateFactor)
	o += putInt64(buf[o:], s.SampleIDOffset)
	if s.OmitData {
		buf[o] = 1
	}
	o++
	o += 3 // reserved
	o += putNulString(buf[o:], string(s.Compression))
	o += putNulString(buf[o:], s.Name)
	o += putNulString(buf[o:], s.Units)
	return buf
}

func decodeSignalDef(payload []byte) (Signal, error) {
	var s Signal
	var err error
	o := 0
	var u16 uint16
	u16, o, err = getUint16(payload, o)
	if err != nil {
		return s, err
	}
	s.SignalID = u16
	u16, o, err = getUint16(payload, o)
	if err != nil {
		return s, err
	}
	s.SourceID = u16
	s.Kind = Kind(payload[o])
	o++
	s.DataType.Base = BaseType(payload[o])
	o++
	s.DataType.BitWidth = payload[o]
	o++
	s.DataType.Q = payload[o]
	o++
	var f64 float64
	f64, o, err = getFloat64(payload, o)
	if err != nil {
		return s, err
	}
	s.SampleRate = f64
	var u32 uint32
	u32, o, err = getUint32(payload, o)
	if err != nil {
		return s, err
	}
	s.SamplesPerData = u32
	u32, o, err = getUint32(payload, o)
	if err != nil {
		return s, err
	}
	s.SampleDecimateFactor = u32
	u32, o, err = getUint32(payload, o)
	if err != nil {
		return s, err
	}
	s.EntriesPerSummary = u32
	u32, o, err = getUint32(payload, o)
	if err != nil {
		return s, err
	}
	s.SummaryDecimateFactor = u32
	u32, o, err = getUint32(payload, o)
	if err != nil {
		return s, err
	}
	s.AnnotationDecimateFactor = u32
	u32, o, err = getUint32(payload, o)
	if err != nil {
		return s, err
	}
	s.UTCDecimateFactor = u32
	var i64 int64
	i64, o, err = getInt64(payload, o)
	if err != nil {
		return s, err
	}
	s.SampleIDOffset = i64
	s.OmitData = payload[o] != 0
	o++
	o += 3
	var str string
	str, o, err = getNulString(payload, o)
	if err != nil {
		return s, err
	}
	s.Compression = CompressionFormat(str)
	s.Name, o, err = getNulString(payload, o)
	if err != nil {
		return s, err
	}
	s.Units, _, err = getNulString(payload, o)
	if err != nil {
		return s, err
	}
	return s, nil
}
