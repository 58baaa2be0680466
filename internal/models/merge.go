package models

// Merge functions implement upsert-with-coalesce: every nullable field takes
// the incoming value when present and keeps the stored one otherwise. Key fields
// always come from the incoming row. A nil stored row returns the incoming row.

func coalesce[T any](incomingV, storedV *T) *T {
	if incomingV != nil {
		return incomingV
	}
	return storedV
}

// MergeRace merges a freshly decoded race over a stored one
func MergeRace(stored, incoming *Race) *Race {
	if stored == nil {
		return incoming
	}
	merged := *incoming
	merged.GradeCode = coalesce(incoming.GradeCode, stored.GradeCode)
	merged.Name = coalesce(incoming.Name, stored.Name)
	merged.ShortName = coalesce(incoming.ShortName, stored.ShortName)
	merged.DistanceM = coalesce(incoming.DistanceM, stored.DistanceM)
	merged.TrackCode = coalesce(incoming.TrackCode, stored.TrackCode)
	merged.Surface = coalesce(incoming.Surface, stored.Surface)
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = stored.UpdatedAt
	}
	return &merged
}

// MergeEntry merges a freshly decoded entry over a stored one
func MergeEntry(stored, incoming *Entry) *Entry {
	if stored == nil {
		return incoming
	}
	merged := *incoming
	merged.HorseID = coalesce(incoming.HorseID, stored.HorseID)
	merged.HorseName = coalesce(incoming.HorseName, stored.HorseName)
	merged.JockeyCode = coalesce(incoming.JockeyCode, stored.JockeyCode)
	merged.JockeyName = coalesce(incoming.JockeyName, stored.JockeyName)
	merged.TrainerCode = coalesce(incoming.TrainerCode, stored.TrainerCode)
	merged.TrainerName = coalesce(incoming.TrainerName, stored.TrainerName)
	merged.BodyWeight = coalesce(incoming.BodyWeight, stored.BodyWeight)
	merged.HandicapWeightX10 = coalesce(incoming.HandicapWeightX10, stored.HandicapWeightX10)
	merged.SetFinish(coalesce(incoming.Finish, stored.Finish))
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = stored.UpdatedAt
	}
	return &merged
}

// MergeOddsQuote merges two announcements for the same horse. The later
// announcement wins field by field regardless of arrival order; when either
// stamp is missing the incoming quote is treated as the later one.
func MergeOddsQuote(stored, incoming *OddsQuote) *OddsQuote {
	if stored == nil {
		return incoming
	}
	later, earlier := incoming, stored
	if stored.AnnouncedAt != nil && incoming.AnnouncedAt != nil && incoming.AnnouncedAt.Before(*stored.AnnouncedAt) {
		later, earlier = stored, incoming
	}
	merged := *later
	merged.OddsMin = coalesce(later.OddsMin, earlier.OddsMin)
	merged.OddsMax = coalesce(later.OddsMax, earlier.OddsMax)
	merged.AnnouncedAt = coalesce(later.AnnouncedAt, earlier.AnnouncedAt)
	if !merged.ValidRange() {
		// Mixed sides from two announcements; keep the later quote whole.
		merged.OddsMin = later.OddsMin
		merged.OddsMax = later.OddsMax
	}
	return &merged
}

// MergeJockey merges jockey master data
func MergeJockey(stored, incoming *Jockey) *Jockey {
	if stored == nil {
		return incoming
	}
	merged := *incoming
	merged.Name = coalesce(incoming.Name, stored.Name)
	merged.ShortName = coalesce(incoming.ShortName, stored.ShortName)
	return &merged
}

// MergeTrainer merges trainer master data
func MergeTrainer(stored, incoming *Trainer) *Trainer {
	if stored == nil {
		return incoming
	}
	merged := *incoming
	merged.Name = coalesce(incoming.Name, stored.Name)
	merged.ShortName = coalesce(incoming.ShortName, stored.ShortName)
	return &merged
}

// MergeHorseLatest merges horse latest metrics. Counts always come from the incoming row.
func MergeHorseLatest(stored, incoming *HorseLatestMetrics) *HorseLatestMetrics {
	if stored == nil {
		return incoming
	}
	merged := *incoming
	merged.HorseName = coalesce(incoming.HorseName, stored.HorseName)
	merged.LastRaceKey = coalesce(incoming.LastRaceKey, stored.LastRaceKey)
	merged.LastRaceDate = coalesce(incoming.LastRaceDate, stored.LastRaceDate)
	merged.LastBodyWeight = coalesce(incoming.LastBodyWeight, stored.LastBodyWeight)
	merged.LastHandicapWeightX10 = coalesce(incoming.LastHandicapWeightX10, stored.LastHandicapWeightX10)
	merged.LastFinish = coalesce(incoming.LastFinish, stored.LastFinish)
	return &merged
}
