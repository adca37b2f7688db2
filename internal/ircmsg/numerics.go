package ircmsg

// RFC 1459/2812 plus IRCv3 SASL numerics, generalized from the teacher's
// numerics.go (which only carried a subset; SASL/monitor numerics
// spec.md requires are added here).
const (
	RplWelcome          uint16 = 1
	RplYourHost         uint16 = 2
	RplCreated          uint16 = 3
	RplMyInfo           uint16 = 4
	RplISupport         uint16 = 5
	RplUmodeIs          uint16 = 221
	RplLUserClient      uint16 = 251
	RplLUserOp          uint16 = 252
	RplLUserUnknown     uint16 = 253
	RplLUserChannels    uint16 = 254
	RplLUserMe          uint16 = 255
	RplAway             uint16 = 301
	RplUserhost         uint16 = 302
	RplIson             uint16 = 303
	RplUnaway           uint16 = 305
	RplNowAway          uint16 = 306
	RplWhoisUser        uint16 = 311
	RplWhoisServer      uint16 = 312
	RplWhoisOperator    uint16 = 313
	RplWhowasUser       uint16 = 314
	RplEndOfWho         uint16 = 315
	RplWhoisIdle        uint16 = 317
	RplEndOfWhois       uint16 = 318
	RplWhoisChannels    uint16 = 319
	RplListStart        uint16 = 321
	RplList             uint16 = 322
	RplListEnd          uint16 = 323
	RplChannelModeIs    uint16 = 324
	RplNoTopic          uint16 = 331
	RplTopic            uint16 = 332
	RplTopicWhoTime     uint16 = 333
	RplInviting         uint16 = 341
	RplInviteList       uint16 = 346
	RplEndOfInviteList  uint16 = 347
	RplExceptList       uint16 = 348
	RplEndOfExceptList  uint16 = 349
	RplVersion          uint16 = 351
	RplWhoReply         uint16 = 352
	RplNamReply         uint16 = 353
	RplLinks            uint16 = 364
	RplEndOfLinks       uint16 = 365
	RplEndOfNames       uint16 = 366
	RplBanList          uint16 = 367
	RplEndOfBanList     uint16 = 368
	RplEndOfWhowas      uint16 = 369
	RplMotd             uint16 = 372
	RplMotdStart        uint16 = 375
	RplEndOfMotd        uint16 = 376
	RplYoureOper        uint16 = 381
	RplRehashing        uint16 = 382
	RplTime             uint16 = 391
	RplMonOnline        uint16 = 730
	RplMonOffline       uint16 = 731
	RplMonList          uint16 = 732
	RplEndOfMonList     uint16 = 733
	RplLoggedIn         uint16 = 900
	RplLoggedOut        uint16 = 901
	RplSaslSuccess      uint16 = 903
	RplSaslFail         uint16 = 904
	RplSaslTooLong      uint16 = 905
	RplSaslAborted      uint16 = 906
	RplSaslAlready      uint16 = 907
	RplSaslMechs        uint16 = 908

	ErrNoSuchNick       uint16 = 401
	ErrNoSuchServer     uint16 = 402
	ErrNoSuchChannel    uint16 = 403
	ErrCannotSendToChan uint16 = 404
	ErrTooManyChannels  uint16 = 405
	ErrWasNoSuchNick    uint16 = 406
	ErrNoOrigin         uint16 = 409
	ErrInvalidCapCmd    uint16 = 410
	ErrNoRecipient      uint16 = 411
	ErrNoTextToSend     uint16 = 412
	ErrUnknownCommand   uint16 = 421
	ErrNoMotd           uint16 = 422
	ErrNoNicknameGiven  uint16 = 431
	ErrErroneousNick    uint16 = 432
	ErrNicknameInUse    uint16 = 433
	ErrNickCollision    uint16 = 436
	ErrUnavailResource  uint16 = 437
	ErrUserNotInChannel uint16 = 441
	ErrNotOnChannel     uint16 = 442
	ErrUserOnChannel    uint16 = 443
	ErrNotRegistered    uint16 = 451
	ErrNeedMoreParams   uint16 = 461
	ErrAlreadyRegistrd  uint16 = 462
	ErrPasswdMismatch   uint16 = 464
	ErrYoureBannedCreep uint16 = 465
	ErrChannelIsFull    uint16 = 471
	ErrUnknownMode      uint16 = 472
	ErrInviteOnlyChan   uint16 = 473
	ErrBannedFromChan   uint16 = 474
	ErrBadChannelKey    uint16 = 475
	ErrBadChanMask      uint16 = 476
	ErrNoChanModes      uint16 = 477
	ErrBanListFull      uint16 = 478
	ErrNoPrivileges     uint16 = 481
	ErrChanOpPrivsNeed  uint16 = 482
	ErrRestricted       uint16 = 484
	ErrUModeUnknownFlag uint16 = 501
	ErrInputTooLong     uint16 = 417
)
