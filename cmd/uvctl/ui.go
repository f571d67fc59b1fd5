package main

import (
	"fmt"
	"os"

	"usdtvault/internal/ledger"

	"github.com/fatih/color"
	"github.com/mdp/qrterminal/v3"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printHeader(msg string) {
	accent.Println(msg)
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func usdt(micros int64) string {
	return fmt.Sprintf("%.2f", ledger.MicrosToUSDT(micros))
}

func printDepositQR(address string) {
	accent.Println(address)
	qrterminal.GenerateWithConfig(address, qrterminal.Config{
		Level:     qrterminal.L,
		Writer:    os.Stdout,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
		QuietZone: 1,
	})
}
