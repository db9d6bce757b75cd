package service

import (
	"fmt"
	"time"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/domain/access"
	"github.com/facegate/facegate/internal/domain/model"
)

// ZonesFromConfig converts configured zones into controller rules.
func ZonesFromConfig(zones []config.ZoneConfig) ([]access.Zone, error) {
	out := make([]access.Zone, 0, len(zones))
	for _, zc := range zones {
		z := access.Zone{
			ID:                zc.ID,
			Name:              zc.Name,
			RequiredLevel:     model.ParseLevel(zc.RequiredLevel),
			DoorControllerIDs: zc.DoorControllers,
		}

		if zc.Timezone != "" {
			loc, err := time.LoadLocation(zc.Timezone)
			if err != nil {
				return nil, fmt.Errorf("zone %s: %w", zc.ID, err)
			}
			z.Location = loc
		}

		if len(zc.Schedule) > 0 {
			sched := make(access.Schedule, len(zc.Schedule))
			for day, ranges := range zc.Schedule {
				weekday, err := access.ParseWeekday(day)
				if err != nil {
					return nil, fmt.Errorf("zone %s: %w", zc.ID, err)
				}
				windows := make([]access.Window, 0, len(ranges))
				for _, r := range ranges {
					w, err := access.ParseWindow(r)
					if err != nil {
						return nil, fmt.Errorf("zone %s: %w", zc.ID, err)
					}
					windows = append(windows, w)
				}
				sched[weekday] = windows
			}
			z.Schedule = sched
		}

		out = append(out, z)
	}
	return out, nil
}

// GrantsFromConfig converts configured grants into controller rules.
func GrantsFromConfig(grants []config.GrantConfig) []access.Grant {
	out := make([]access.Grant, 0, len(grants))
	for _, gc := range grants {
		out = append(out, access.Grant{
			IdentityID: gc.IdentityID,
			ZoneID:     gc.ZoneID,
			Level:      model.ParseLevel(gc.Level),
		})
	}
	return out
}
