// Package dvf reads the "Demandes de valeurs foncières" open data files, in
// both the geolocated CSV layout and the raw pipe-separated layout.
package dvf

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"parcel-locator/internal/repository"
	"parcel-locator/internal/utils"
)

var ErrMissingColumn = errors.New("dvf: missing column")

// Column names after header normalization.
const (
	colMutationID    = "id_mutation"
	colDate          = "date_mutation"
	colDisposition   = "no_disposition"
	colNature        = "nature_mutation"
	colPrice         = "valeur_fonciere"
	colPostalCode    = "code_postal"
	colCommune       = "code_commune"
	colDepartment    = "code_departement"
	colParcelID      = "id_parcelle"
	colSectionPrefix = "prefixe_de_section"
	colSection       = "section"
	colPlan          = "no_plan"
	colLocalType     = "type_local"
	colBuiltSurface  = "surface_reelle_bati"
	colLandSurface   = "surface_terrain"
)

// Reader yields the parcels of one mutation at a time. Rows of a mutation
// are contiguous in DVF exports; the rows of one parcel are merged.
type Reader struct {
	csv     *csv.Reader
	cols    map[string]int
	raw     bool
	line    int
	skipped int

	lookahead []string
}

func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && header != "") {
		return nil, fmt.Errorf("dvf: read header: %w", err)
	}
	header = strings.TrimPrefix(strings.TrimRight(header, "\r\n"), "\ufeff")

	comma := detectDelimiter(header)
	names, err := splitHeader(header, comma)
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(names))
	for i, name := range names {
		cols[normalizeColumn(name)] = i
	}

	_, hasParcel := cols[colParcelID]
	rd := &Reader{cols: cols, raw: !hasParcel, line: 1}
	required := []string{colDate, colPrice}
	if rd.raw {
		required = append(required, colDepartment, colCommune, colSection, colPlan)
	} else {
		required = append(required, colMutationID, colParcelID)
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rd.csv = cr
	return rd, nil
}

// Skipped is the number of rows dropped so far for missing or malformed
// values.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Next returns the parcels of the next mutation, or io.EOF.
func (r *Reader) Next() ([]repository.DVFMutation, error) {
	var (
		current string
		byID    = map[string]int{}
		out     []repository.DVFMutation
	)
	for {
		record, err := r.read()
		if errors.Is(err, io.EOF) {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		m, ok := r.parse(record)
		if !ok {
			r.skipped++
			continue
		}
		if current != "" && m.MutationID != current {
			r.lookahead = record
			return out, nil
		}
		current = m.MutationID

		if i, seen := byID[m.ParcelID]; seen {
			out[i] = merge(out[i], m)
			continue
		}
		byID[m.ParcelID] = len(out)
		out = append(out, m)
	}
}

func (r *Reader) read() ([]string, error) {
	if r.lookahead != nil {
		rec := r.lookahead
		r.lookahead = nil
		return rec, nil
	}
	rec, err := r.csv.Read()
	r.line++
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dvf: line %d: %w", r.line, err)
	}
	return rec, err
}

func (r *Reader) field(rec []string, col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (r *Reader) parse(rec []string) (repository.DVFMutation, bool) {
	date, err := parseDate(r.field(rec, colDate))
	if err != nil {
		return repository.DVFMutation{}, false
	}
	price, ok := parseNumber(r.field(rec, colPrice))
	if !ok || price <= 0 {
		return repository.DVFMutation{}, false
	}

	m := repository.DVFMutation{
		MutationDate: date,
		Nature:       r.field(rec, colNature),
		Price:        price,
		PropertyType: r.field(rec, colLocalType),
		PostalCode:   padLeft(r.field(rec, colPostalCode), 5),
	}
	m.BuiltSurface, _ = parseNumber(r.field(rec, colBuiltSurface))
	m.LandSurface, _ = parseNumber(r.field(rec, colLandSurface))

	if r.raw {
		dept := r.field(rec, colDepartment)
		commune := r.field(rec, colCommune)
		m.CommuneCode = communeCode(dept, commune)
		m.ParcelID = rawParcelID(m.CommuneCode, r.field(rec, colSectionPrefix), r.field(rec, colSection), r.field(rec, colPlan))
		// Raw exports carry no mutation identifier.
		m.MutationID = strings.Join([]string{
			m.CommuneCode,
			date.Format("20060102"),
			r.field(rec, colDisposition),
			strconv.FormatFloat(price, 'f', 2, 64),
		}, "-")
	} else {
		m.MutationID = r.field(rec, colMutationID)
		m.ParcelID = r.field(rec, colParcelID)
		m.CommuneCode = r.field(rec, colCommune)
	}

	if m.ParcelID == "" || m.MutationID == "" {
		return repository.DVFMutation{}, false
	}
	return m, true
}

// merge folds another row of the same parcel into m. Surfaces repeat across
// rows, so the largest is kept; a dwelling type wins over an outbuilding.
func merge(m, other repository.DVFMutation) repository.DVFMutation {
	m.BuiltSurface = max(m.BuiltSurface, other.BuiltSurface)
	m.LandSurface = max(m.LandSurface, other.LandSurface)
	if isDwelling(other.PropertyType) && !isDwelling(m.PropertyType) {
		m.PropertyType = other.PropertyType
	} else if m.PropertyType == "" {
		m.PropertyType = other.PropertyType
	}
	return m
}

func isDwelling(t string) bool {
	n := utils.NormalizeText(t)
	return n == "maison" || n == "appartement"
}

func detectDelimiter(header string) rune {
	best, bestCount := ',', strings.Count(header, ",")
	for _, c := range []rune{'|', ';', '\t'} {
		if n := strings.Count(header, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func splitHeader(header string, comma rune) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(header))
	cr.Comma = comma
	cr.LazyQuotes = true
	names, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dvf: parse header: %w", err)
	}
	return names, nil
}

// normalizeColumn maps both "Valeur fonciere" and "valeur_fonciere" to the
// same key.
func normalizeColumn(name string) string {
	n := utils.NormalizeText(name)
	n = strings.ReplaceAll(n, " ", "_")
	if n == "n°_disposition" || n == "numero_disposition" {
		return colDisposition
	}
	return n
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("dvf: invalid date %q", s)
}

// parseNumber accepts both "250000.00" and the raw export's "250000,00".
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// communeCode builds the INSEE code from the raw export's department and
// commune columns. Overseas departments have three digits.
func communeCode(dept, commune string) string {
	dept = strings.ToUpper(dept)
	if len(dept) == 1 {
		dept = "0" + dept
	}
	if len(dept) == 3 {
		return dept + padLeft(commune, 2)
	}
	return dept + padLeft(commune, 3)
}

// rawParcelID builds the 14-character cadastral identifier.
func rawParcelID(commune, prefix, section, plan string) string {
	if commune == "" || section == "" || plan == "" {
		return ""
	}
	if prefix == "" {
		prefix = "000"
	}
	return commune + padLeft(prefix, 3) + padLeft(strings.ToUpper(section), 2) + padLeft(plan, 4)
}

func padLeft(s string, n int) string {
	if s == "" || len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}
