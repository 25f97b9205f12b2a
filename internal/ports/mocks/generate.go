//go:generate mockgen -source=../message_repository.go -destination=./mock_message_repository.go -package=mocks
//go:generate mockgen -source=../record_sink.go        -destination=./mock_record_sink.go        -package=mocks
//go:generate mockgen -source=../logger.go             -destination=./mock_logger.go             -package=mocks
//go:generate mockgen -source=../dispatcher.go         -destination=./mock_dispatcher.go         -package=mocks

package mocks
