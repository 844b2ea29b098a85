package mockapi

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/five82/toolroom/internal/api"
)

// SeedOptions size the generated demo data.
type SeedOptions struct {
	Seed     uint64 // zero picks a fixed default so demo data is stable
	Machines int
	Parts    int
}

var machineTypes = []string{"Lathe", "Mill", "Swiss-type lathe", "Grinder", "Machining center"}

// Seed fills b with generated machines, parts, maintenance history and a
// technician account. The same options always produce the same data.
func Seed(b *Backend, opts SeedOptions) error {
	if opts.Seed == 0 {
		opts.Seed = 82
	}
	if opts.Machines <= 0 {
		opts.Machines = 12
	}
	if opts.Parts <= 0 {
		opts.Parts = 24
	}
	f := gofakeit.New(opts.Seed)
	epoch := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)

	b.AddUser(api.UserInput{Username: "tech", FullName: f.Name(), Role: "Technician", IsActive: true, Password: "tech"})

	partIDs := make([]int64, 0, opts.Parts)
	for i := range opts.Parts {
		category := api.PartCategories[i%len(api.PartCategories)]
		id, err := b.createPart(api.PartInput{
			PartNumber:    fmt.Sprintf("P-%05d", 10000+i*7),
			Name:          f.ProductName(),
			Description:   f.ProductDescription(),
			Category:      category,
			Price:         f.Price(5, 900),
			Manufacturer:  f.Company(),
			StockQuantity: f.IntRange(0, 30),
		})
		if err != nil {
			return fmt.Errorf("seed part %d: %w", i, err)
		}
		partIDs = append(partIDs, id)
	}

	for i := range opts.Machines {
		status := api.StatusActive
		switch {
		case i%7 == 6:
			status = api.StatusOutOfService
		case i%5 == 4:
			status = api.StatusInMaintenance
		}
		installed := f.DateRange(epoch, epoch.AddDate(10, 0, 0))
		id, err := b.createMachine(api.MachineCreate{
			Number:           fmt.Sprintf("M-%04d", 1001+i),
			Type:             f.RandomString(machineTypes),
			OperatingHours:   f.IntRange(100, 3000),
			InstallationDate: installed.Format(timeLayout),
			Status:           status,
		})
		if err != nil {
			return fmt.Errorf("seed machine %d: %w", i, err)
		}

		if i%2 == 0 && len(partIDs) > 0 {
			part := partIDs[f.IntRange(0, len(partIDs)-1)]
			if b.stockOf(part) > 0 {
				if _, err := b.performMaintenance(id, api.MaintenanceRequest{
					TechnicianID:    "tech",
					MaintenanceType: "Scheduled",
					Comments:        f.HipsterSentence(6),
					ReplacedParts:   []api.ReplacedPartInput{{PartID: part, Quantity: 1}},
				}); err != nil {
					return fmt.Errorf("seed maintenance for machine %d: %w", i, err)
				}
			}
		}
		if i%3 == 0 {
			hours := f.IntRange(3000, 9000)
			if err := b.setOperatingHours(id, hours); err != nil {
				return fmt.Errorf("seed hours for machine %d: %w", i, err)
			}
		}
		if i%4 == 0 {
			if err := b.setMagazine(id, api.MagazineProperties{
				CustomerName:   f.Company(),
				CustomerNumber: fmt.Sprintf("C-%06d", f.IntRange(1, 999999)),
				SerialNumber:   fmt.Sprintf("MAG-%05d", f.IntRange(10000, 99999)),
				MagazineType:   "Bar feeder",
			}); err != nil {
				return fmt.Errorf("seed magazine for machine %d: %w", i, err)
			}
		}
	}
	return nil
}

func (b *Backend) stockOf(partID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.parts[partID]; ok {
		return p.StockQuantity
	}
	return 0
}
