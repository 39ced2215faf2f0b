package apiclient

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Overview is everything the dashboard home page shows.
type Overview struct {
	Stats        Stats
	Companies    Page[Company]
	Applications Page[Application]
}

// Overview fetches the dashboard summary, companies and applications
// concurrently. If the stored credential has expired, all three calls fail
// authorization together and share a single renewal.
func (c *Client) Overview(ctx context.Context, opts ListOptions) (Overview, error) {
	var ov Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		ov.Stats, err = c.DashboardStats(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Companies, err = c.Companies(ctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		ov.Applications, err = c.Applications(ctx, opts)
		return err
	})

	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return ov, nil
}
