package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	doctorEnvFile string
	doctorPort    int
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment for common test-setup problems.",
	Run: func(cmd *cobra.Command, args []string) {
		ok := true

		if !checkEnvFile(doctorEnvFile) {
			ok = false
		}

		if doctorPort > 0 && !checkPort(doctorPort) {
			ok = false
		}

		if !ok {
			os.Exit(1)
		}

		fmt.Println("environment looks good")
	},
}

func checkEnvFile(path string) bool {
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("skip: no %s file\n", path)
		return true
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		fmt.Printf("fail: %s is not a valid dotenv file: %v\n", path, err)
		return false
	}

	fmt.Printf("ok: %s defines %d variables\n", path, len(vars))

	return true
}

func checkPort(port int) bool {
	l, err := net.Listen("tcp",
		net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		fmt.Printf("fail: port %d is not available: %v\n", port, err)
		return false
	}

	l.Close()
	fmt.Printf("ok: port %d is available\n", port)

	return true
}

func init() {
	doctorCmd.Flags().StringVar(&doctorEnvFile, "env-file", ".env",
		"dotenv file to validate")
	doctorCmd.Flags().IntVar(&doctorPort, "port", 0,
		"check that this port is available")

	rootCmd.AddCommand(doctorCmd)
}
