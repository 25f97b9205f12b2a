package mocks

//go:generate mockgen -destination=mock_reader.go -package=mocks -source=../consumer.go reader,metadataConn
