package locate

// WithSatellite returns a copy using url as the satellite asset. Empty values
// keep the current asset.
func (v CandidateVisuals) WithSatellite(url string) CandidateVisuals {
	if url != "" {
		v.SatelliteURL = url
	}
	return v
}

// WithCadastre returns a copy using url as the cadastral overlay. Empty values
// keep the current overlay so the field never goes blank.
func (v CandidateVisuals) WithCadastre(url string) CandidateVisuals {
	if url != "" {
		v.CadastreURL = url
	}
	return v
}

// WithStreetView returns a copy carrying url as the street-level asset; an
// empty url removes it.
func (v CandidateVisuals) WithStreetView(url string) CandidateVisuals {
	v.StreetViewURL = url
	return v
}
