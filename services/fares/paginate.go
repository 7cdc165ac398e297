package fares

import "railfare-backend/lib/scrapers/renfe"

const maxPerPage = 20

// paginate slices rides into the requested page. Page and per-page are
// clamped rather than rejected: out-of-range input is a UX nuisance,
// not an error.
func paginate(rides []renfe.Ride, page, perPage int) ([]renfe.Ride, int, int) {
	if perPage < 1 {
		perPage = 1
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	totalPages := (len(rides) + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	if start >= len(rides) {
		return nil, page, totalPages
	}
	end := start + perPage
	if end > len(rides) {
		end = len(rides)
	}
	return rides[start:end], page, totalPages
}
