package samplesheet

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// ParseFile reads and parses a SampleSheet.csv from path, returning the
// typed record the rest of the pipeline consumes.
func ParseFile(ctx context.Context, path string) (*SampleSheet, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open samplesheet", path)
	}
	defer func() { _ = f.Close(ctx) }()

	sections, err := splitSections(f.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, "parse samplesheet", path)
	}

	ss := &SampleSheet{Settings: DefaultSettings()}
	if h, ok := sections["Header"]; ok {
		parseHeaderSection(h, ss)
	}
	if r, ok := sections["Reads"]; ok {
		parseReadsSection(r, ss)
	}
	if s, ok := sections["Settings"]; ok {
		if err := parseSettingsSection(s, &ss.Settings); err != nil {
			return nil, errors.E(err, "parse [Settings]", path)
		}
	} else {
		return nil, errors.E("missing required [Settings] section", path)
	}
	if d, ok := sections["Data"]; ok {
		rows, err := parseDataSection(d)
		if err != nil {
			return nil, errors.E(err, "parse [Data]", path)
		}
		ss.Data = rows
	} else {
		return nil, errors.E("missing required [Data] section", path)
	}

	return ss, nil
}

// splitSections groups the CSV-with-bracketed-headers format into raw
// lines per section name, dropping the bracket header line itself.
func splitSections(r io.Reader) (map[string][]string, error) {
	scanner := bufio.NewScanner(r)
	sections := map[string][]string{}
	current := ""
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			name := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			current = strings.TrimSuffix(name, "Section")
			continue
		}
		if current == "" {
			continue
		}
		sections[current] = append(sections[current], line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

func parseHeaderSection(lines []string, ss *SampleSheet) {
	for _, kv := range keyValueLines(lines) {
		switch kv[0] {
		case "RunName":
			ss.RunName = kv[1]
		case "InstrumentPlatform":
			ss.InstrumentPlatform = kv[1]
		}
	}
}

func parseReadsSection(lines []string, ss *SampleSheet) {
	for _, kv := range keyValueLines(lines) {
		v, err := strconv.ParseUint(kv[1], 10, 16)
		if err != nil {
			continue
		}
		switch kv[0] {
		case "Read1Cycles":
			ss.Read1Cycles = uint16(v)
		case "Read2Cycles":
			ss.Read2Cycles = uint16(v)
		case "Index1Cycles":
			ss.Index1Cycles = uint16(v)
		case "Index2Cycles":
			ss.Index2Cycles = uint16(v)
		}
	}
}

func parseSettingsSection(lines []string, s *Settings) error {
	for _, kv := range keyValueLines(lines) {
		key, val := kv[0], kv[1]
		switch key {
		case "SoftwareVersion":
			s.SoftwareVersion = val
		case "OverrideCycles":
			oc, err := ParseOverrideCycles(val)
			if err != nil {
				return err
			}
			s.OverrideCycles = oc
		case "AdapterRead1":
			s.AdapterRead1 = splitPlus(val)
		case "AdapterRead2":
			s.AdapterRead2 = splitPlus(val)
		case "AdapterBehavior":
			s.AdapterBehavior = AdapterBehavior(strings.ToLower(val))
		case "AdapterStringency":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return err
			}
			s.AdapterStringency = f
		case "MinimumAdapterOverlap":
			n, err := strconv.Atoi(val)
			if err != nil {
				return err
			}
			s.MinimumAdapterOverlap = n
		case "CreateFastqForIndexReads":
			s.CreateFastqForIndexReads = parseBool(val)
		case "TrimUMI":
			s.TrimUMI = parseBool(val)
		case "MaskShortReads":
			n, err := strconv.ParseUint(val, 10, 16)
			if err != nil {
				return err
			}
			s.MaskShortReads = uint16(n)
		case "NoLaneSplitting":
			s.NoLaneSplitting = parseBool(val)
		case "FastqCompressionFormat":
			s.FastqCompressionFormat = CompressionFormat(strings.ToLower(val))
		}
	}
	return nil
}

func parseDataSection(lines []string) ([]DataRow, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	header := strings.Split(lines[0], ",")
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	var rows []DataRow
	for _, line := range lines[1:] {
		fields := strings.Split(line, ",")
		row := DataRow{}
		if i, ok := col["Lane"]; ok && i < len(fields) {
			n, err := strconv.ParseUint(fields[i], 10, 8)
			if err != nil {
				return nil, errors.E(err, "Lane column")
			}
			row.Lane = uint8(n)
		}
		if i, ok := col["Sample_ID"]; ok && i < len(fields) {
			row.SampleID = fields[i]
		}
		if i, ok := col["index"]; ok && i < len(fields) {
			row.Index = fields[i]
		}
		if i, ok := col["index2"]; ok && i < len(fields) {
			row.Index2 = fields[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseOverrideCycles parses a directive like "Y151;I8;I8;Y151" into its
// per-read segments. Each semicolon-separated segment is a sequence of
// letter+digit runs (e.g. "I8N2"); every segment must contain exactly one
// Index or Read run.
func ParseOverrideCycles(s string) (OverrideCycles, error) {
	var out OverrideCycles
	for _, segStr := range strings.Split(s, ";") {
		segStr = strings.TrimSpace(segStr)
		if segStr == "" {
			continue
		}
		seg, err := parseCycleSegment(segStr)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

func parseCycleSegment(s string) ([]CycleRun, error) {
	var runs []CycleRun
	yOrI := 0
	i := 0
	for i < len(s) {
		kind := CycleKind(s[i])
		switch kind {
		case KindIndex, KindRead, KindUMI, KindTrim:
		default:
			return nil, errors.E("unknown cycle kind", string(s[i]))
		}
		i++
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return nil, errors.E("missing cycle count after kind", string(kind))
		}
		n, err := strconv.Atoi(s[start:i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, CycleRun{Kind: kind, Length: n})
		if kind == KindIndex || kind == KindRead {
			yOrI++
		}
	}
	if yOrI != 1 {
		return nil, errors.E("each read segment must contain exactly one Y or I run", s)
	}
	return runs, nil
}

func keyValueLines(lines []string) [][2]string {
	out := make([][2]string, 0, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, ",", 2)
		key := strings.TrimSpace(parts[0])
		val := ""
		if len(parts) > 1 {
			val = strings.TrimSpace(parts[1])
		}
		out = append(out, [2]string{key, val})
	}
	return out
}

func splitPlus(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "+")
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
