package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecordType is a DNS record type accepted by get_dns_records.
type RecordType string

const (
	TypeA     RecordType = "A"
	TypeAAAA  RecordType = "AAAA"
	TypeMX    RecordType = "MX"
	TypeNS    RecordType = "NS"
	TypeTXT   RecordType = "TXT"
	TypeCNAME RecordType = "CNAME"
	TypeSOA   RecordType = "SOA"
)

// AllRecordTypes is the default query set, in output order.
var AllRecordTypes = []RecordType{TypeA, TypeAAAA, TypeMX, TypeNS, TypeTXT, TypeCNAME, TypeSOA}

// ParseRecordType accepts a record type name in any case.
func ParseRecordType(s string) (RecordType, error) {
	t := RecordType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllRecordTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported record type: %s", s)
}

// Resolver answers a single DNS question. A name that exists without
// records of the type yields an empty slice; NXDOMAIN yields a NotFound
// LookupError.
type Resolver interface {
	Query(ctx context.Context, name string, rtype RecordType) ([]string, error)
}

// DNSRecordSet is the get_dns_records payload. Every requested type is a
// key of Records.
type DNSRecordSet struct {
	Domain  string                  `json:"domain"`
	Records map[RecordType][]string `json:"records"`
	Errors  map[RecordType]string   `json:"errors,omitempty"`
}

type MXRecord struct {
	Priority uint16 `json:"priority"`
	Exchange string `json:"exchange"`
}

type SOARecord struct {
	PrimaryNS        string `json:"primary_ns"`
	ResponsibleParty string `json:"responsible_party"`
	Serial           uint32 `json:"serial"`
	Refresh          uint32 `json:"refresh"`
	Retry            uint32 `json:"retry"`
	Expire           uint32 `json:"expire"`
	Minimum          uint32 `json:"minimum"`
}

// DNSLookupResult is the dns_lookup payload.
type DNSLookupResult struct {
	Domain string                `json:"domain"`
	A      []string              `json:"a"`
	AAAA   []string              `json:"aaaa"`
	MX     []MXRecord            `json:"mx"`
	TXT    []string              `json:"txt"`
	NS     []string              `json:"ns"`
	CNAME  []string              `json:"cname"`
	SOA    *SOARecord            `json:"soa,omitempty"`
	Errors map[RecordType]string `json:"errors,omitempty"`
}

// DNSClient runs per-type queries against a Resolver, each with its own
// timeout.
type DNSClient struct {
	Resolver Resolver
	Timeout  time.Duration
}

// Records queries each requested type. Per-type failures are recorded in
// Errors; the call itself fails only when no type produced an answer.
func (d *DNSClient) Records(ctx context.Context, name string, types []RecordType) (*DNSRecordSet, error) {
	if len(types) == 0 {
		types = AllRecordTypes
	}

	set := &DNSRecordSet{
		Domain:  name,
		Records: make(map[RecordType][]string, len(types)),
		Errors:  map[RecordType]string{},
	}

	var (
		firstErr error
		failed   int
		nxdomain int
		asked    int
	)
	for _, rtype := range types {
		if _, seen := set.Records[rtype]; seen {
			continue
		}
		asked++

		values, err := d.query(ctx, name, rtype)
		if values == nil {
			values = []string{}
		}
		set.Records[rtype] = values

		switch {
		case err == nil:
		case IsKind(err, KindNotFound):
			nxdomain++
		default:
			failed++
			set.Errors[rtype] = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if failed == asked {
		return nil, firstErr
	}
	if nxdomain > 0 && nxdomain+failed == asked {
		return nil, &LookupError{Kind: KindNotFound, Op: "dns", Domain: name, Err: errors.New("domain does not exist (NXDOMAIN)")}
	}
	if len(set.Errors) == 0 {
		set.Errors = nil
	}
	return set, nil
}

// Lookup queries every record type and shapes the answer for dns_lookup.
func (d *DNSClient) Lookup(ctx context.Context, name string) (*DNSLookupResult, error) {
	set, err := d.Records(ctx, name, AllRecordTypes)
	if err != nil {
		return nil, err
	}

	res := &DNSLookupResult{
		Domain: name,
		A:      set.Records[TypeA],
		AAAA:   set.Records[TypeAAAA],
		MX:     []MXRecord{},
		TXT:    set.Records[TypeTXT],
		NS:     set.Records[TypeNS],
		CNAME:  set.Records[TypeCNAME],
		Errors: set.Errors,
	}
	for _, v := range set.Records[TypeMX] {
		if mx, ok := parseMX(v); ok {
			res.MX = append(res.MX, mx)
		}
	}
	if soa := set.Records[TypeSOA]; len(soa) > 0 {
		res.SOA = parseSOA(soa[0])
	}
	return res, nil
}

func (d *DNSClient) query(ctx context.Context, name string, rtype RecordType) ([]string, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	values, err := d.Resolver.Query(ctx, name, rtype)
	if err != nil {
		var le *LookupError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, &LookupError{Kind: classify(err), Op: "dns", Domain: name, Source: string(rtype), Err: err}
	}
	return values, nil
}

// parseMX reads "<pref> <host>".
func parseMX(v string) (MXRecord, bool) {
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return MXRecord{}, false
	}
	pref, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return MXRecord{}, false
	}
	return MXRecord{Priority: uint16(pref), Exchange: fields[1]}, true
}

// parseSOA reads the seven space separated SOA fields.
func parseSOA(v string) *SOARecord {
	fields := strings.Fields(v)
	if len(fields) != 7 {
		return nil
	}
	nums := make([]uint32, 5)
	for i, f := range fields[2:] {
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil
		}
		nums[i] = uint32(n)
	}
	return &SOARecord{
		PrimaryNS:        fields[0],
		ResponsibleParty: fields[1],
		Serial:           nums[0],
		Refresh:          nums[1],
		Retry:            nums[2],
		Expire:           nums[3],
		Minimum:          nums[4],
	}
}
