// Package codec implements the stable little-endian binary format used to
// batch ArbitrageOpportunity records onto the wire: a fixed 25-byte header,
// followed by one fixed-96-byte-plus-symbol record per opportunity.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arbitrage-core/arbitrage-core/internal/detector"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

const (
	magic          uint32 = 0x4F505054 // "OPPT"
	version        uint8  = 1
	headerSize            = 25
	fixedRecordLen        = 96
	maxSymbolLen          = 16
)

// ErrInvalidMagic, ErrUnsupportedVersion and ErrEmptyBatch are sentinel
// decode/encode errors; BufferTooSmall, UnknownExchange and UnknownChain
// carry context and are returned as their concrete types.
var (
	ErrInvalidMagic      = errors.New("codec: invalid magic")
	ErrUnsupportedVersion = errors.New("codec: unsupported version")
	ErrEmptyBatch        = errors.New("codec: empty batch")
)

// BufferTooSmall reports a decode attempt against a buffer shorter than the
// header or the current record requires.
type BufferTooSmall struct {
	Expected, Actual int
}

func (e *BufferTooSmall) Error() string {
	return fmt.Sprintf("codec: buffer too small: expected %d bytes, got %d", e.Expected, e.Actual)
}

// UnknownExchange is returned decoding a venue id this build doesn't
// recognize — the wire format is forward-compatible in principle, but this
// implementation's venue table is closed.
type UnknownExchange struct{ ID uint16 }

func (e *UnknownExchange) Error() string {
	return fmt.Sprintf("codec: unknown exchange id %d", e.ID)
}

// UnknownChain is returned decoding a chain id outside the registered table.
type UnknownChain struct{ ID uint8 }

func (e *UnknownChain) Error() string {
	return fmt.Sprintf("codec: unknown chain id %d", e.ID)
}

// chainIDs assigns a stable u8 id to every chain name this system quotes
// bridge/gas costs against. Index 0 is reserved for market.DefaultChain.
var chainIDs = map[string]uint8{
	market.DefaultChain: 0,
	"ethereum":          1,
	"bsc":               2,
	"polygon":           3,
	"arbitrum":          4,
	"optimism":          5,
	"solana":            6,
	"tron":              7,
	"avalanche":         8,
}

var chainNames = func() map[uint8]string {
	m := make(map[uint8]string, len(chainIDs))
	for name, id := range chainIDs {
		m[id] = name
	}
	return m
}()

func chainID(name string) uint8 {
	if id, ok := chainIDs[name]; ok {
		return id
	}
	return chainIDs[market.DefaultChain]
}

var knownVenues = map[market.Venue]bool{
	market.VenueBinance:   true,
	market.VenueCoinbase:  true,
	market.VenueKraken:    true,
	market.VenueBybit:     true,
	market.VenueOkx:       true,
	market.VenueGateIO:    true,
	market.VenueUpbit:     true,
	market.VenueBithumb:   true,
	market.VenueUniswapV3: true,
	market.VenueCurve:     true,
}

// Batch is one encodable/decodable group of opportunities sharing a batch
// id and emission timestamp.
type Batch struct {
	BatchID       uint64
	TimestampMs   uint64
	Opportunities []OpportunityRecord
}

// NewBatchID generates a fresh batch id by hashing a random UUIDv4 down to
// the wire format's u64 field. A full UUID carries more entropy than the
// format needs; folding it in half keeps batch ids effectively unique
// across a single producer's lifetime without widening the header.
func NewBatchID() uint64 {
	id := uuid.New()
	hi := binary.BigEndian.Uint64(id[0:8])
	lo := binary.BigEndian.Uint64(id[8:16])
	return hi ^ lo
}

// OpportunityRecord is the wire-level projection of detector.Opportunity:
// every price/fee field carried as its raw u64 fixed-point value (scale
// 1e8, not divided down), plus the asset's chain and decimals metadata
// needed to interpret it off-process.
type OpportunityRecord struct {
	SourceVenue       market.Venue
	TargetVenue       market.Venue
	ID                uint64
	DiscoveredAtMs    uint64
	SourcePrice       uint64
	TargetPrice       uint64
	PremiumBPS        int32
	GasCost           uint64
	BridgeFee         uint64
	TradingFee        uint64
	NetProfitEstimate int64
	MinAmount         uint64
	MaxAmount         uint64
	ConfidenceScore   uint8
	Chain             string
	Decimals          uint8
	Symbol            string
}

// FromOpportunity projects a detector.Opportunity into its wire record,
// scaling every fixed-point field to its raw u64 representation.
func FromOpportunity(o detector.Opportunity, chain string, decimals uint8) OpportunityRecord {
	return OpportunityRecord{
		SourceVenue:       o.SourceVenue,
		TargetVenue:       o.TargetVenue,
		ID:                o.ID,
		DiscoveredAtMs:    uint64(o.DiscoveredAtMs),
		SourcePrice:       uint64(o.SourcePrice),
		TargetPrice:       uint64(o.TargetPrice),
		PremiumBPS:        o.PremiumBPS,
		GasCost:           uint64(o.GasCost),
		BridgeFee:         uint64(o.BridgeFee),
		TradingFee:        uint64(o.TradingFee),
		NetProfitEstimate: o.NetProfitEstimate,
		MinAmount:         uint64(o.MinAmount),
		MaxAmount:         uint64(o.MaxAmount),
		ConfidenceScore:   o.ConfidenceScore,
		Chain:             chain,
		Decimals:          decimals,
		Symbol:            o.Asset,
	}
}

// Encode serializes a batch per the stable wire layout. It returns
// ErrEmptyBatch rather than emitting a zero-count header, since a batch
// with nothing in it is a caller bug, not a valid wire message.
func Encode(b Batch) ([]byte, error) {
	if len(b.Opportunities) == 0 {
		return nil, ErrEmptyBatch
	}

	buf := make([]byte, 0, headerSize+len(b.Opportunities)*(fixedRecordLen+maxSymbolLen))
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], magic)
	header[4] = version
	binary.LittleEndian.PutUint32(header[5:9], uint32(len(b.Opportunities)))
	binary.LittleEndian.PutUint64(header[9:17], b.BatchID)
	binary.LittleEndian.PutUint64(header[17:25], b.TimestampMs)
	buf = append(buf, header...)

	for _, rec := range b.Opportunities {
		symbol := rec.Symbol
		if len(symbol) > maxSymbolLen {
			symbol = symbol[:maxSymbolLen]
		}
		record := make([]byte, fixedRecordLen)
		binary.LittleEndian.PutUint16(record[0:2], uint16(rec.SourceVenue))
		binary.LittleEndian.PutUint16(record[2:4], uint16(rec.TargetVenue))
		binary.LittleEndian.PutUint64(record[4:12], rec.ID)
		binary.LittleEndian.PutUint64(record[12:20], rec.DiscoveredAtMs)
		binary.LittleEndian.PutUint64(record[20:28], rec.SourcePrice)
		binary.LittleEndian.PutUint64(record[28:36], rec.TargetPrice)
		binary.LittleEndian.PutUint32(record[36:40], uint32(rec.PremiumBPS))
		binary.LittleEndian.PutUint32(record[40:44], 0) // pad
		binary.LittleEndian.PutUint64(record[44:52], rec.GasCost)
		binary.LittleEndian.PutUint64(record[52:60], rec.BridgeFee)
		binary.LittleEndian.PutUint64(record[60:68], rec.TradingFee)
		binary.LittleEndian.PutUint64(record[68:76], uint64(rec.NetProfitEstimate))
		binary.LittleEndian.PutUint64(record[76:84], rec.MinAmount)
		binary.LittleEndian.PutUint64(record[84:92], rec.MaxAmount)
		record[92] = rec.ConfidenceScore
		record[93] = chainID(rec.Chain)
		record[94] = rec.Decimals
		record[95] = uint8(len(symbol))
		buf = append(buf, record...)
		buf = append(buf, []byte(symbol)...)
	}
	return buf, nil
}

// Decode parses a batch, validating magic/version and every embedded
// exchange/chain id against this build's known tables.
func Decode(buf []byte) (Batch, error) {
	if len(buf) < headerSize {
		return Batch{}, &BufferTooSmall{Expected: headerSize, Actual: len(buf)}
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return Batch{}, ErrInvalidMagic
	}
	if buf[4] != version {
		return Batch{}, ErrUnsupportedVersion
	}
	count := binary.LittleEndian.Uint32(buf[5:9])
	if count == 0 {
		return Batch{}, ErrEmptyBatch
	}
	batch := Batch{
		BatchID:     binary.LittleEndian.Uint64(buf[9:17]),
		TimestampMs: binary.LittleEndian.Uint64(buf[17:25]),
	}

	offset := headerSize
	for i := uint32(0); i < count; i++ {
		if offset+fixedRecordLen > len(buf) {
			return Batch{}, &BufferTooSmall{Expected: offset + fixedRecordLen, Actual: len(buf)}
		}
		record := buf[offset : offset+fixedRecordLen]

		sourceVenue := market.Venue(binary.LittleEndian.Uint16(record[0:2]))
		if !knownVenues[sourceVenue] {
			return Batch{}, &UnknownExchange{ID: uint16(sourceVenue)}
		}
		targetVenue := market.Venue(binary.LittleEndian.Uint16(record[2:4]))
		if !knownVenues[targetVenue] {
			return Batch{}, &UnknownExchange{ID: uint16(targetVenue)}
		}
		chain, ok := chainNames[record[93]]
		if !ok {
			return Batch{}, &UnknownChain{ID: record[93]}
		}

		rec := OpportunityRecord{
			SourceVenue:       sourceVenue,
			TargetVenue:       targetVenue,
			ID:                binary.LittleEndian.Uint64(record[4:12]),
			DiscoveredAtMs:    binary.LittleEndian.Uint64(record[12:20]),
			SourcePrice:       binary.LittleEndian.Uint64(record[20:28]),
			TargetPrice:       binary.LittleEndian.Uint64(record[28:36]),
			PremiumBPS:        int32(binary.LittleEndian.Uint32(record[36:40])),
			GasCost:           binary.LittleEndian.Uint64(record[44:52]),
			BridgeFee:         binary.LittleEndian.Uint64(record[52:60]),
			TradingFee:        binary.LittleEndian.Uint64(record[60:68]),
			NetProfitEstimate: int64(binary.LittleEndian.Uint64(record[68:76])),
			MinAmount:         binary.LittleEndian.Uint64(record[76:84]),
			MaxAmount:         binary.LittleEndian.Uint64(record[84:92]),
			ConfidenceScore:   record[92],
			Chain:             chain,
			Decimals:          record[94],
		}
		symbolLen := int(record[95])
		offset += fixedRecordLen
		if offset+symbolLen > len(buf) {
			return Batch{}, &BufferTooSmall{Expected: offset + symbolLen, Actual: len(buf)}
		}
		rec.Symbol = string(buf[offset : offset+symbolLen])
		offset += symbolLen

		batch.Opportunities = append(batch.Opportunities, rec)
	}
	return batch, nil
}
