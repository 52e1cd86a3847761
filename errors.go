/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Player-triggered failures. All of these are recovered at the command
// boundary and converted into an outbound notice; none of them escape
// the room loop.
var (
	errRoomFull          = errors.New("the room is full")
	errInvalidToken      = errors.New("session token is invalid or expired")
	errKicked            = errors.New("player is still serving a kick timeout")
	errIllegalTransition = errors.New("command is not allowed right now")
	errAbilityNotHeld    = errors.New("ability is not held")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
