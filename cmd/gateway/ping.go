package main

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

var pingClient = resty.New()

func ping(ctx context.Context, url string) error {
	resp, err := pingClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}
