package memory

import (
	"context"
	"sync"

	"plaza-billing/internal/directory"
)

// Business is a directory entry.
type Business struct {
	ID       string
	Name     string
	UnitCode string
	Category string
	Floor    *int
}

// Directory is an in-memory Resolver and BusinessInfoSource.
type Directory struct {
	mu         sync.RWMutex
	businesses map[string]Business
	floors     map[int]string
	info       directory.BusinessInfo
}

// NewDirectory constructs an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		businesses: make(map[string]Business),
		floors:     make(map[int]string),
	}
}

// PutBusiness adds or replaces a business.
func (d *Directory) PutBusiness(b Business) {
	d.mu.Lock()
	d.businesses[b.ID] = b
	d.mu.Unlock()
}

// PutFloor sets a floor label.
func (d *Directory) PutFloor(floor int, label string) {
	d.mu.Lock()
	d.floors[floor] = label
	d.mu.Unlock()
}

// SetBusinessInfo replaces the plaza branding.
func (d *Directory) SetBusinessInfo(info directory.BusinessInfo) {
	d.mu.Lock()
	d.info = info
	d.mu.Unlock()
}

func (d *Directory) business(id string) Business {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.businesses[id]
}

func (d *Directory) BusinessName(_ context.Context, id string) (string, error) {
	return d.business(id).Name, nil
}

func (d *Directory) UnitCode(_ context.Context, id string) (string, error) {
	return d.business(id).UnitCode, nil
}

func (d *Directory) BusinessCategory(_ context.Context, id string) (string, error) {
	return d.business(id).Category, nil
}

func (d *Directory) BusinessFloor(_ context.Context, id string) (int, bool, error) {
	b := d.business(id)
	if b.Floor == nil {
		return 0, false, nil
	}
	return *b.Floor, true, nil
}

func (d *Directory) FloorLabel(_ context.Context, floor int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.floors[floor], nil
}

func (d *Directory) BusinessInfo(context.Context) (directory.BusinessInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info, nil
}
